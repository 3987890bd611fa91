package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teamledger/internal/cache"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"

	"gorm.io/gorm"
)

// TierService 等级目录服务
type TierService struct {
	repo     repository.TierRepository
	siteRepo repository.SiteRepository
	edgeRepo repository.TeamEdgeRepository
}

// NewTierService 创建等级目录服务
func NewTierService(repo repository.TierRepository, siteRepo repository.SiteRepository, edgeRepo repository.TeamEdgeRepository) *TierService {
	return &TierService{repo: repo, siteRepo: siteRepo, edgeRepo: edgeRepo}
}

// TierCatalog 站点等级目录（按阈值升序，最后一个为最高等级）
type TierCatalog struct {
	SiteID uint
	Tiers  []models.Tier
}

// Top 返回最高等级
func (c *TierCatalog) Top() *models.Tier {
	if c == nil || len(c.Tiers) == 0 {
		return nil
	}
	return &c.Tiers[len(c.Tiers)-1]
}

// IsTop 判断等级是否为最高等级
func (c *TierCatalog) IsTop(tierID uint) bool {
	top := c.Top()
	return top != nil && tierID != 0 && top.ID == tierID
}

// ByID 根据 ID 查找等级
func (c *TierCatalog) ByID(tierID uint) *models.Tier {
	if c == nil {
		return nil
	}
	for i := range c.Tiers {
		if c.Tiers[i].ID == tierID {
			return &c.Tiers[i]
		}
	}
	return nil
}

// HighestReached 返回阈值不超过 count 的最高等级
func (c *TierCatalog) HighestReached(count int64) *models.Tier {
	if c == nil {
		return nil
	}
	for i := len(c.Tiers) - 1; i >= 0; i-- {
		if c.Tiers[i].Threshold <= count {
			return &c.Tiers[i]
		}
	}
	return nil
}

func newTierCatalog(siteID uint, tiers []models.Tier) *TierCatalog {
	catalog := &TierCatalog{SiteID: siteID, Tiers: tiers}
	for i := range catalog.Tiers {
		catalog.Tiers[i].IsTop = i == len(catalog.Tiers)-1
	}
	return catalog
}

// Catalog 获取站点等级目录，优先读取缓存
func (s *TierService) Catalog(ctx context.Context, siteID uint) (*TierCatalog, error) {
	tiers, hit, err := cache.GetTierCatalog(ctx, siteID)
	if err != nil {
		logger.Warnw("tier_catalog_cache_get_failed", "site_id", siteID, "error", err)
	}
	if hit && len(tiers) > 0 {
		return newTierCatalog(siteID, tiers), nil
	}
	tiers, err = s.repo.ListBySite(siteID)
	if err != nil {
		return nil, err
	}
	if err := cache.SetTierCatalog(ctx, siteID, tiers); err != nil {
		logger.Warnw("tier_catalog_cache_set_failed", "site_id", siteID, "error", err)
	}
	return newTierCatalog(siteID, tiers), nil
}

// SaveTierInput 创建/更新等级输入
type SaveTierInput struct {
	SiteID    uint
	Name      string
	Threshold int64
	Rates     string
}

// CreateTier 创建等级
func (s *TierService) CreateTier(ctx context.Context, input SaveTierInput) (*models.Tier, error) {
	tier := &models.Tier{}
	if err := s.applyTierInput(tier, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(tier); err != nil {
		return nil, err
	}
	s.invalidate(ctx, tier.SiteID)
	return tier, nil
}

// UpdateTier 更新等级；比例变化时同一事务内刷新该等级下使用默认比例成员的推荐树
func (s *TierService) UpdateTier(ctx context.Context, id uint, input SaveTierInput) (*models.Tier, error) {
	tier, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tier == nil || (input.SiteID != 0 && tier.SiteID != input.SiteID) {
		return nil, ErrTierNotFound
	}
	previous := tier.Rates
	input.SiteID = tier.SiteID
	if err := s.applyTierInput(tier, input); err != nil {
		return nil, err
	}
	tier.UpdatedAt = time.Now()
	ratesChanged := !previous.Equal(tier.Rates)
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(tier); err != nil {
			return err
		}
		if !ratesChanged {
			return nil
		}
		return s.applyTierRates(tx, tier)
	})
	if err != nil {
		return nil, err
	}
	if ratesChanged {
		logger.Infow("tier_rates_propagated", "tier_id", tier.ID, "rates", tier.Rates.String())
	}
	s.invalidate(ctx, tier.SiteID)
	return tier, nil
}

func (s *TierService) applyTierRates(tx *gorm.DB, tier *models.Tier) error {
	edgeRepo := s.edgeRepo.WithTx(tx)
	for level := 1; level <= tier.Rates.Len(); level++ {
		if err := edgeRepo.UpdateTierRateByLevel(tier.ID, level, tier.Rates.Fraction(level)); err != nil {
			return err
		}
	}
	return edgeRepo.ZeroTierRatesBeyond(tier.ID, tier.Rates.Len())
}

func (s *TierService) applyTierInput(tier *models.Tier, input SaveTierInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.Threshold < 0 {
		return ErrInvalidInput
	}
	site, err := s.siteRepo.GetByID(input.SiteID)
	if err != nil {
		return err
	}
	if site == nil {
		return ErrSiteNotFound
	}
	rates, err := models.ParseRateVector(input.Rates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRateVectorInvalid, err)
	}
	tier.SiteID = site.ID
	tier.Name = name
	tier.Threshold = input.Threshold
	tier.Rates = rates
	return nil
}

func (s *TierService) invalidate(ctx context.Context, siteID uint) {
	if err := cache.DelTierCatalog(ctx, siteID); err != nil {
		logger.Warnw("tier_catalog_cache_del_failed", "site_id", siteID, "error", err)
	}
}
