package service

import (
	"context"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"

	"gorm.io/gorm"
)

// TreeService 推荐树构建服务，推荐树边只由该服务写入
type TreeService struct {
	edgeRepo    repository.TeamEdgeRepository
	userRepo    repository.UserRepository
	cardRepo    repository.CardRepository
	tierService *TierService
}

// NewTreeService 创建推荐树服务
func NewTreeService(
	edgeRepo repository.TeamEdgeRepository,
	userRepo repository.UserRepository,
	cardRepo repository.CardRepository,
	tierService *TierService,
) *TreeService {
	return &TreeService{
		edgeRepo:    edgeRepo,
		userRepo:    userRepo,
		cardRepo:    cardRepo,
		tierService: tierService,
	}
}

// Transaction 在推荐树仓储上执行事务
func (s *TreeService) Transaction(fn func(tx *gorm.DB) error) error {
	return s.edgeRepo.Transaction(fn)
}

// ExtendTree 卖家新增卡片后增量扩展推荐树：
// 卖家获得第 1 层，卖家自身卡片所在的祖先树各下探一层（最多到第 3 层）。
func (s *TreeService) ExtendTree(ctx context.Context, tx *gorm.DB, sellerID uint, cardIDs []uint) error {
	if len(cardIDs) == 0 {
		return nil
	}
	edgeRepo := s.edgeRepo.WithTx(tx)
	userRepo := s.userRepo.WithTx(tx)

	seller, err := userRepo.GetByID(sellerID)
	if err != nil {
		return err
	}
	if seller == nil {
		return ErrUserNotFound
	}
	ownCard, err := s.cardRepo.WithTx(tx).GetOwnedBy(seller.ID)
	if err != nil {
		return err
	}
	if ownCard == nil {
		return ErrSellerWithoutCard
	}
	catalog, err := s.tierService.Catalog(ctx, seller.SiteID)
	if err != nil {
		return err
	}

	rates := seller.EffectiveRates()
	edges := make([]models.TeamEdge, 0, len(cardIDs)*constants.TreeExtendMaxLevel)
	for _, cardID := range cardIDs {
		edges = append(edges, models.TeamEdge{
			UserID:         seller.ID,
			CardID:         cardID,
			Level:          1,
			CommissionRate: rates.Fraction(1),
		})
	}

	disabled := catalog.IsTop(seller.TierID)
	ancestors, err := edgeRepo.ListByCard(ownCard.ID)
	if err != nil {
		return err
	}
	for _, ancestorEdge := range ancestors {
		level := ancestorEdge.Level + 1
		if level > constants.TreeExtendMaxLevel || ancestorEdge.UserID == seller.ID {
			continue
		}
		ancestor, err := userRepo.GetByID(ancestorEdge.UserID)
		if err != nil {
			return err
		}
		if ancestor == nil {
			continue
		}
		ancestorRates := ancestor.EffectiveRates()
		for _, cardID := range cardIDs {
			edges = append(edges, models.TeamEdge{
				UserID:             ancestor.ID,
				CardID:             cardID,
				Level:              level,
				CommissionRate:     ancestorRates.Fraction(level),
				CommissionDisabled: disabled,
			})
		}
	}

	if err := edgeRepo.CreateBatch(edges); err != nil {
		return err
	}
	logger.Debugw("tree_extended", "seller_id", seller.ID, "cards", len(cardIDs), "edges", len(edges))
	return nil
}

// RebuildTree 删除根成员的全部边并按广度优先重新展开。
// 每层只加入该根成员树中尚不存在的卡片；卡片持有人为最高等级时，其下方分支停止计佣。
func (s *TreeService) RebuildTree(ctx context.Context, tx *gorm.DB, rootID uint) (int, error) {
	edgeRepo := s.edgeRepo.WithTx(tx)

	root, err := s.userRepo.WithTx(tx).GetByID(rootID)
	if err != nil {
		return 0, err
	}
	if root == nil {
		return 0, ErrUserNotFound
	}
	catalog, err := s.tierService.Catalog(ctx, root.SiteID)
	if err != nil {
		return 0, err
	}
	if _, err := edgeRepo.DeleteByRoot(root.ID); err != nil {
		return 0, err
	}

	rates := root.EffectiveRates()
	maxLevel := rebuildDepth(rates)

	frontier := map[uint]bool{root.ID: false}
	order := []uint{root.ID}
	total := 0
	for level := 1; level <= maxLevel && len(order) > 0; level++ {
		rows, err := edgeRepo.ListFrontierCards(root.SiteID, root.ID, order)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}

		edges := make([]models.TeamEdge, 0, len(rows))
		next := make(map[uint]bool)
		nextOrder := make([]uint, 0)
		for _, row := range rows {
			disabled := frontier[row.SellerID]
			edges = append(edges, models.TeamEdge{
				UserID:             root.ID,
				CardID:             row.CardID,
				Level:              level,
				CommissionRate:     rates.Fraction(level),
				CommissionDisabled: disabled,
			})
			if row.OwnerID == nil {
				continue
			}
			if _, seen := next[*row.OwnerID]; seen {
				continue
			}
			ownerTop := row.OwnerTierID != nil && catalog.IsTop(*row.OwnerTierID)
			next[*row.OwnerID] = disabled || ownerTop
			nextOrder = append(nextOrder, *row.OwnerID)
		}
		if err := edgeRepo.CreateBatch(edges); err != nil {
			return total, err
		}
		total += len(edges)
		frontier, order = next, nextOrder
	}
	return total, nil
}

// rebuildDepth 全量重建的层级上限：max(3, 向量长度)，且不超过安全上限
func rebuildDepth(rates models.RateVector) int {
	depth := constants.TreeMinRebuildLevel
	if rates.Len() > depth {
		depth = rates.Len()
	}
	if depth > constants.MaxTreeDepth {
		depth = constants.MaxTreeDepth
	}
	return depth
}

// TeamStats 按层级统计成员树中已激活的卡片
func (s *TreeService) TeamStats(ctx context.Context, tx *gorm.DB, rootID uint) ([]repository.LevelCountRow, error) {
	root, err := s.userRepo.WithTx(tx).GetByID(rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrUserNotFound
	}
	return s.edgeRepo.WithTx(tx).CountActivatedByLevel(root.ID)
}

// ApplyRateVector 按成员当前有效比例刷新其推荐树各层佣金，超出向量长度的层级置零
func (s *TreeService) ApplyRateVector(ctx context.Context, tx *gorm.DB, userID uint) error {
	user, err := s.userRepo.WithTx(tx).GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	edgeRepo := s.edgeRepo.WithTx(tx)
	rates := user.EffectiveRates()
	for level := 1; level <= rates.Len(); level++ {
		if err := edgeRepo.UpdateRateByLevel(user.ID, level, rates.Fraction(level)); err != nil {
			return err
		}
	}
	return edgeRepo.ZeroRatesBeyond(user.ID, rates.Len())
}

// CapOtherTrees 成员达到最高等级后，其他根成员经由该成员团队的更深层级边停止计佣
func (s *TreeService) CapOtherTrees(ctx context.Context, tx *gorm.DB, userID uint) (int64, error) {
	affected, err := s.edgeRepo.WithTx(tx).DisableDeeperInOtherTrees(userID)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logger.Infow("tree_other_trees_capped", "user_id", userID, "edges", affected)
	}
	return affected, nil
}
