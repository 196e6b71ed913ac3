package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/InboxSlash/inbox-slash/internal/model"
)

// Repository wraps all database access for the pipeline and handlers.
type Repository struct {
	db *gorm.DB
}

// New creates a new repository
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ResolveMailbox returns the connected account and owning user for a mailbox
// address, or (nil, nil, nil) when nothing is connected.
func (r *Repository) ResolveMailbox(email string) (*model.Account, *model.User, error) {
	var user model.User
	result := r.db.Where("email = ?", email).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if result.Error != nil {
		return nil, nil, fmt.Errorf("database error resolving user: %w", result.Error)
	}

	var acct model.Account
	result = r.db.Where("user_id = ? AND provider = ?", user.ID, model.ProviderGoogle).First(&acct)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if result.Error != nil {
		return nil, nil, fmt.Errorf("database error resolving account: %w", result.Error)
	}

	return &acct, &user, nil
}

// EnabledRules returns the user's enabled rules with their ordered actions.
func (r *Repository) EnabledRules(userID uint) ([]model.Rule, error) {
	var rules []model.Rule
	result := r.db.Where("user_id = ? AND enabled = ?", userID, true).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Order("id ASC").
		Find(&rules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get enabled rules: %w", result.Error)
	}
	return rules, nil
}

// AdvanceCursor moves the user's change cursor forward. The guard in the
// WHERE clause keeps it monotonic even under concurrent notifications; an
// update that would rewind simply affects zero rows.
func (r *Repository) AdvanceCursor(userID uint, historyID uint64) error {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND last_synced_history_id < ?", userID, historyID).
		Update("last_synced_history_id", historyID)
	if result.Error != nil {
		return fmt.Errorf("failed to advance cursor: %w", result.Error)
	}
	return nil
}

// Exists reports whether the decision pipeline already ran for this key.
func (r *Repository) Exists(userID uint, threadID, messageID string) (bool, error) {
	var rec model.ExecutedRule
	result := r.db.Select("id").
		Where("user_id = ? AND thread_id = ? AND message_id = ?", userID, threadID, messageID).
		First(&rec)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking ledger: %w", result.Error)
}

// Create inserts a ledger record. A unique-index conflict means a concurrent
// run already committed the same key; that is reported as created=false, not
// an error.
func (r *Repository) Create(rec *model.ExecutedRule) (bool, error) {
	result := r.db.Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create ledger record: %w", result.Error)
	}
	return true, nil
}

// IsSenderBlocked reports whether the (already normalized, lowercase) sender
// address is on the user's block list.
func (r *Repository) IsSenderBlocked(userID uint, email string) (bool, error) {
	var blocked model.BlockedSender
	result := r.db.Where("user_id = ? AND email = ?", userID, strings.ToLower(email)).First(&blocked)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking blocked sender: %w", result.Error)
}

// RecordColdEmail stores a cold-email classification; repeat classifications
// of the same sender keep the first row.
func (r *Repository) RecordColdEmail(rec *model.ColdEmail) error {
	result := r.db.Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("failed to record cold email: %w", result.Error)
	}
	return nil
}

// SyncTarget pairs a user with their connected account for the sweep.
type SyncTarget struct {
	User    model.User
	Account model.Account
}

// SyncTargets returns every user with a connected account, for the periodic
// reconciliation sweep.
func (r *Repository) SyncTargets() ([]SyncTarget, error) {
	var accounts []model.Account
	result := r.db.Where("provider = ?", model.ProviderGoogle).Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", result.Error)
	}

	var targets []SyncTarget
	for _, acct := range accounts {
		var user model.User
		res := r.db.First(&user, acct.UserID)
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			continue
		}
		if res.Error != nil {
			return nil, fmt.Errorf("failed to load user %d: %w", acct.UserID, res.Error)
		}
		targets = append(targets, SyncTarget{User: user, Account: acct})
	}
	return targets, nil
}

// Rules returns all rules for a user, enabled or not.
func (r *Repository) Rules(userID uint) ([]model.Rule, error) {
	var rules []model.Rule
	result := r.db.Where("user_id = ?", userID).Preload("Actions").Order("id ASC").Find(&rules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get rules: %w", result.Error)
	}
	return rules, nil
}

// RuleByID returns one rule or gorm.ErrRecordNotFound.
func (r *Repository) RuleByID(userID, id uint) (*model.Rule, error) {
	var rule model.Rule
	result := r.db.Where("user_id = ?", userID).Preload("Actions").First(&rule, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &rule, nil
}

// CreateRule persists a rule with its actions.
func (r *Repository) CreateRule(rule *model.Rule) error {
	if result := r.db.Create(rule); result.Error != nil {
		return fmt.Errorf("failed to create rule: %w", result.Error)
	}
	return nil
}

// SetRuleEnabled toggles a rule's visibility to the pipeline.
func (r *Repository) SetRuleEnabled(userID, id uint, enabled bool) error {
	result := r.db.Model(&model.Rule{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to update rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteRule soft-deletes a rule.
func (r *Repository) DeleteRule(userID, id uint) error {
	result := r.db.Where("user_id = ?", userID).Delete(&model.Rule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	return nil
}

// Executions lists ledger records for a user, newest first.
func (r *Repository) Executions(userID uint, offset, limit int) ([]model.ExecutedRule, int64, error) {
	var total int64
	if err := r.db.Model(&model.ExecutedRule{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	var recs []model.ExecutedRule
	result := r.db.Where("user_id = ?", userID).
		Preload("Rule").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&recs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", result.Error)
	}
	return recs, total, nil
}

// BlockedSenders lists the user's unsubscribe block list.
func (r *Repository) BlockedSenders(userID uint) ([]model.BlockedSender, error) {
	var senders []model.BlockedSender
	result := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&senders)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list blocked senders: %w", result.Error)
	}
	return senders, nil
}

// BlockSender adds a sender to the user's block list; duplicates are ignored.
func (r *Repository) BlockSender(userID uint, email string) error {
	rec := model.BlockedSender{UserID: userID, Email: strings.ToLower(email)}
	result := r.db.Create(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("failed to block sender: %w", result.Error)
	}
	return nil
}
