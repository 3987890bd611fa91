package service

import (
	"context"
	"time"

	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/repository"

	"gorm.io/gorm"
)

// TierTransitionService 等级晋升检测服务
type TierTransitionService struct {
	userRepo          repository.UserRepository
	commissionService *CommissionService
	tierService       *TierService
	treeService       *TreeService
}

// NewTierTransitionService 创建等级晋升检测服务
func NewTierTransitionService(
	userRepo repository.UserRepository,
	commissionService *CommissionService,
	tierService *TierService,
	treeService *TreeService,
) *TierTransitionService {
	return &TierTransitionService{
		userRepo:          userRepo,
		commissionService: commissionService,
		tierService:       tierService,
		treeService:       treeService,
	}
}

// TierTransition 一次等级晋升
type TierTransition struct {
	UserID     uint  `json:"user_id"`
	FromTierID uint  `json:"from_tier_id"`
	ToTierID   uint  `json:"to_tier_id"`
	Count      int64 `json:"count"`
	ReachedTop bool  `json:"reached_top"`
	Capped     int64 `json:"capped_edges"`
}

// DetectTransitions 按账期内计入的充值笔数检测晋升（只升不降），每个成员单独事务；
// 单个成员失败只记录日志，不影响其他成员。
func (s *TierTransitionService) DetectTransitions(ctx context.Context, siteID, monthID uint) ([]TierTransition, error) {
	catalog, err := s.tierService.Catalog(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if len(catalog.Tiers) == 0 {
		return nil, ErrTierCatalogEmpty
	}
	counts, err := s.commissionService.ByUser(nil, repository.CommissionFilter{
		SiteID:          siteID,
		MonthIDs:        []uint{monthID},
		IncludeDisabled: true,
	})
	if err != nil {
		return nil, err
	}

	transitions := make([]TierTransition, 0)
	for _, item := range counts {
		if err := ctx.Err(); err != nil {
			return transitions, err
		}
		target := catalog.HighestReached(item.Count)
		if target == nil {
			continue
		}
		user, err := s.userRepo.GetByID(item.UserID)
		if err != nil {
			logger.Warnw("tier_transition_load_user_failed", "user_id", item.UserID, "error", err)
			continue
		}
		if user == nil || user.Deactivated() || user.TierID == target.ID {
			continue
		}
		if current := catalog.ByID(user.TierID); current != nil && target.Threshold <= current.Threshold {
			continue
		}

		transition := TierTransition{
			UserID:     user.ID,
			FromTierID: user.TierID,
			ToTierID:   target.ID,
			Count:      item.Count,
			ReachedTop: catalog.IsTop(target.ID),
		}
		err = s.treeService.Transaction(func(tx *gorm.DB) error {
			if err := s.userRepo.WithTx(tx).UpdateTier(user.ID, target.ID, time.Now()); err != nil {
				return err
			}
			if transition.ReachedTop {
				capped, err := s.treeService.CapOtherTrees(ctx, tx, user.ID)
				if err != nil {
					return err
				}
				transition.Capped = capped
			}
			return s.treeService.ApplyRateVector(ctx, tx, user.ID)
		})
		if err != nil {
			logger.Warnw("tier_transition_apply_failed",
				"user_id", user.ID,
				"from_tier_id", transition.FromTierID,
				"to_tier_id", transition.ToTierID,
				"error", err,
			)
			continue
		}
		logger.Infow("tier_transition_applied",
			"user_id", user.ID,
			"from_tier_id", transition.FromTierID,
			"to_tier_id", transition.ToTierID,
			"count", item.Count,
		)
		transitions = append(transitions, transition)
	}
	return transitions, nil
}
