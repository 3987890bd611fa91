package service

import (
	"context"
	"errors"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/repository"

	"gorm.io/gorm"
)

// errReconcileRollback 试运行模式下用于回滚事务
var errReconcileRollback = errors.New("reconcile dry run rollback")

// ReconcileService 推荐树对账工具，逐成员重建并对比各层级统计
type ReconcileService struct {
	userRepo    repository.UserRepository
	treeService *TreeService
}

// NewReconcileService 创建对账服务
func NewReconcileService(userRepo repository.UserRepository, treeService *TreeService) *ReconcileService {
	return &ReconcileService{userRepo: userRepo, treeService: treeService}
}

// ReconcileLevelDiff 单个层级的差异
type ReconcileLevelDiff struct {
	Level  int   `json:"level"`
	Before int64 `json:"before"`
	After  int64 `json:"after"`
}

// ReconcileUserResult 单个成员的对账结果
type ReconcileUserResult struct {
	UserID  uint                 `json:"user_id"`
	Edges   int                  `json:"edges"`
	Diffs   []ReconcileLevelDiff `json:"diffs,omitempty"`
	Changed bool                 `json:"changed"`
	Error   string               `json:"error,omitempty"`
}

// ReconcileReport 对账报告
type ReconcileReport struct {
	SiteID  uint                  `json:"site_id"`
	Mode    string                `json:"mode"`
	Users   []ReconcileUserResult `json:"users"`
	Changed int                   `json:"changed"`
	Failed  int                   `json:"failed"`
}

// Compare 试运行：逐成员重建后对比统计，然后回滚
func (s *ReconcileService) Compare(ctx context.Context, siteID, userID uint) (*ReconcileReport, error) {
	return s.run(ctx, siteID, userID, constants.ReconcileModeDryRun)
}

// Rebuild 逐成员重建推荐树并提交；成员之间不具备原子性
func (s *ReconcileService) Rebuild(ctx context.Context, siteID, userID uint) (*ReconcileReport, error) {
	return s.run(ctx, siteID, userID, constants.ReconcileModeApply)
}

// Run 按模式执行对账
func (s *ReconcileService) Run(ctx context.Context, siteID, userID uint, mode string) (*ReconcileReport, error) {
	switch mode {
	case constants.ReconcileModeDryRun, "":
		return s.Compare(ctx, siteID, userID)
	case constants.ReconcileModeApply:
		return s.Rebuild(ctx, siteID, userID)
	default:
		return nil, ErrInvalidInput
	}
}

func (s *ReconcileService) run(ctx context.Context, siteID, userID uint, mode string) (*ReconcileReport, error) {
	userIDs, err := s.targetUsers(siteID, userID)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{SiteID: siteID, Mode: mode, Users: make([]ReconcileUserResult, 0, len(userIDs))}
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := s.reconcileUser(ctx, id, mode == constants.ReconcileModeDryRun)
		if result.Error != "" {
			report.Failed++
		} else if result.Changed {
			report.Changed++
		}
		report.Users = append(report.Users, result)
	}
	logger.Infow("reconcile_finished",
		"site_id", siteID,
		"mode", mode,
		"users", len(report.Users),
		"changed", report.Changed,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *ReconcileService) targetUsers(siteID, userID uint) ([]uint, error) {
	if userID != 0 {
		user, err := s.userRepo.GetByID(userID)
		if err != nil {
			return nil, err
		}
		if user == nil || (siteID != 0 && user.SiteID != siteID) {
			return nil, ErrUserNotFound
		}
		return []uint{user.ID}, nil
	}
	users, err := s.userRepo.ListBySite(siteID, false)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (s *ReconcileService) reconcileUser(ctx context.Context, userID uint, dryRun bool) ReconcileUserResult {
	result := ReconcileUserResult{UserID: userID}
	err := s.treeService.Transaction(func(tx *gorm.DB) error {
		before, err := s.treeService.TeamStats(ctx, tx, userID)
		if err != nil {
			return err
		}
		edges, err := s.treeService.RebuildTree(ctx, tx, userID)
		if err != nil {
			return err
		}
		after, err := s.treeService.TeamStats(ctx, tx, userID)
		if err != nil {
			return err
		}
		result.Edges = edges
		result.Diffs = diffLevelCounts(before, after)
		result.Changed = len(result.Diffs) > 0
		if dryRun {
			return errReconcileRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errReconcileRollback) {
		logger.Warnw("reconcile_user_failed", "user_id", userID, "error", err)
		result.Error = err.Error()
	}
	return result
}

// diffLevelCounts 返回计数不一致的层级
func diffLevelCounts(before, after []repository.LevelCountRow) []ReconcileLevelDiff {
	counts := make(map[int]*ReconcileLevelDiff)
	maxLevel := 0
	for _, row := range before {
		counts[row.Level] = &ReconcileLevelDiff{Level: row.Level, Before: row.Count}
		if row.Level > maxLevel {
			maxLevel = row.Level
		}
	}
	for _, row := range after {
		item, ok := counts[row.Level]
		if !ok {
			item = &ReconcileLevelDiff{Level: row.Level}
			counts[row.Level] = item
		}
		item.After = row.Count
		if row.Level > maxLevel {
			maxLevel = row.Level
		}
	}
	diffs := make([]ReconcileLevelDiff, 0)
	for level := 1; level <= maxLevel; level++ {
		item, ok := counts[level]
		if !ok || item.Before == item.After {
			continue
		}
		diffs = append(diffs, *item)
	}
	return diffs
}
