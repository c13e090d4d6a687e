package database

import (
	"database/sql"
	"errors"
	"fmt"
	"streamline/models"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrRuleNotFound = errors.New("block rule not found")
	ErrRuleExists   = errors.New("block rule already exists")
	ErrEmptyPattern = errors.New("block rule pattern is empty")
)

const blockRuleColumns = "pattern, active, description, created_at, updated_at"

func validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return ErrEmptyPattern
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlockRule(row rowScanner) (models.BlockRule, error) {
	var rule models.BlockRule
	err := row.Scan(&rule.Pattern, &rule.Active, &rule.Description, &rule.CreatedAt, &rule.UpdatedAt)
	return rule, err
}

// AddBlockRule inserts a new rule. New rules start inactive unless the caller says otherwise.
func AddBlockRule(rule models.BlockRule) error {
	if err := validatePattern(rule.Pattern); err != nil {
		return err
	}
	_, err := DB.Exec(`INSERT INTO block_rules (pattern, active, description, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, rule.Pattern, rule.Active, rule.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("adding rule %q: %w", rule.Pattern, ErrRuleExists)
		}
		return fmt.Errorf("adding rule %q: %w", rule.Pattern, err)
	}
	return nil
}

// UpsertBlockRule inserts the rule or overwrites the active flag and description of an existing one.
func UpsertBlockRule(rule models.BlockRule) error {
	if err := validatePattern(rule.Pattern); err != nil {
		return err
	}
	_, err := DB.Exec(`INSERT INTO block_rules (pattern, active, description, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(pattern) DO UPDATE SET active = excluded.active, description = excluded.description, updated_at = CURRENT_TIMESTAMP`,
		rule.Pattern, rule.Active, rule.Description)
	if err != nil {
		return fmt.Errorf("upserting rule %q: %w", rule.Pattern, err)
	}
	return nil
}

// UpdateBlockRule replaces the rule identified by oldPattern. The pattern itself may change.
func UpdateBlockRule(oldPattern string, rule models.BlockRule) error {
	if err := validatePattern(rule.Pattern); err != nil {
		return err
	}
	res, err := DB.Exec(`UPDATE block_rules SET pattern = ?, active = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE pattern = ?`, rule.Pattern, rule.Active, rule.Description, oldPattern)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("renaming rule %q to %q: %w", oldPattern, rule.Pattern, ErrRuleExists)
		}
		return fmt.Errorf("updating rule %q: %w", oldPattern, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected for rule %q: %w", oldPattern, err)
	}
	if n == 0 {
		return fmt.Errorf("updating rule %q: %w", oldPattern, ErrRuleNotFound)
	}
	return nil
}

// DeleteBlockRules removes every listed pattern and reports how many rows went away.
func DeleteBlockRules(patterns ...string) (int64, error) {
	if len(patterns) == 0 {
		return 0, nil
	}
	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("DELETE FROM block_rules WHERE pattern = ?")
	if err != nil {
		return 0, fmt.Errorf("preparing delete rule statement: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, p := range patterns {
		res, err := stmt.Exec(p)
		if err != nil {
			return 0, fmt.Errorf("deleting rule %q: %w", p, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete transaction: %w", err)
	}
	return total, nil
}

// SetBlockRulesActive flips the active flag on the listed patterns. Unknown patterns are ignored.
func SetBlockRulesActive(active bool, patterns ...string) (int64, error) {
	if len(patterns) == 0 {
		return 0, nil
	}
	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning activation transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE block_rules SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE pattern = ?")
	if err != nil {
		return 0, fmt.Errorf("preparing activation statement: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, p := range patterns {
		res, err := stmt.Exec(active, p)
		if err != nil {
			return 0, fmt.Errorf("setting active=%t on rule %q: %w", active, p, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing activation transaction: %w", err)
	}
	return total, nil
}

func GetBlockRule(pattern string) (models.BlockRule, error) {
	rule, err := scanBlockRule(DB.QueryRow("SELECT "+blockRuleColumns+" FROM block_rules WHERE pattern = ?", pattern))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rule, fmt.Errorf("rule %q: %w", pattern, ErrRuleNotFound)
		}
		return rule, fmt.Errorf("querying rule %q: %w", pattern, err)
	}
	return rule, nil
}

// GetAllBlockRules returns every rule in insertion order.
func GetAllBlockRules() ([]models.BlockRule, error) {
	rows, err := DB.Query("SELECT " + blockRuleColumns + " FROM block_rules ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("querying block rules: %w", err)
	}
	defer rows.Close()

	rules := []models.BlockRule{}
	for rows.Next() {
		rule, err := scanBlockRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning block rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating block rule rows: %w", err)
	}
	return rules, nil
}
