package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MemberService 站点与成员管理
type MemberService struct {
	siteRepo    repository.SiteRepository
	userRepo    repository.UserRepository
	tierService *TierService
	treeService *TreeService
}

// NewMemberService 创建成员管理服务
func NewMemberService(siteRepo repository.SiteRepository, userRepo repository.UserRepository, tierService *TierService, treeService *TreeService) *MemberService {
	return &MemberService{siteRepo: siteRepo, userRepo: userRepo, tierService: tierService, treeService: treeService}
}

// SaveSiteInput 站点配置输入
type SaveSiteInput struct {
	Name                   string
	ReportVATPercent       decimal.Decimal
	AdminDeduction         models.Money
	CommissionWindowMonths int
	TaxPercent             decimal.Decimal
	WithholdingPercent     decimal.Decimal
	HouseCardPhone         string
}

// CreateSite 创建站点
func (s *MemberService) CreateSite(ctx context.Context, input SaveSiteInput) (*models.Site, error) {
	site := &models.Site{}
	if err := applySiteInput(site, input); err != nil {
		return nil, err
	}
	if err := s.siteRepo.Create(site); err != nil {
		return nil, err
	}
	return site, nil
}

// UpdateSite 更新站点配置
func (s *MemberService) UpdateSite(ctx context.Context, id uint, input SaveSiteInput) (*models.Site, error) {
	site, err := s.siteRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrSiteNotFound
	}
	if err := applySiteInput(site, input); err != nil {
		return nil, err
	}
	site.UpdatedAt = time.Now()
	if err := s.siteRepo.Update(site); err != nil {
		return nil, err
	}
	return site, nil
}

// GetSite 获取站点
func (s *MemberService) GetSite(ctx context.Context, id uint) (*models.Site, error) {
	site, err := s.siteRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrSiteNotFound
	}
	return site, nil
}

// ListSites 站点列表
func (s *MemberService) ListSites(ctx context.Context) ([]models.Site, error) {
	return s.siteRepo.List()
}

func applySiteInput(site *models.Site, input SaveSiteInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.CommissionWindowMonths < 0 || input.ReportVATPercent.IsNegative() {
		return ErrInvalidInput
	}
	site.Name = name
	site.ReportVATPercent = input.ReportVATPercent
	site.AdminDeductionDefault = input.AdminDeduction
	site.CommissionWindowMonths = input.CommissionWindowMonths
	site.TaxPercentDefault = input.TaxPercent
	site.WithholdingPercentDefault = input.WithholdingPercent
	site.HouseCardPhone = strings.TrimSpace(input.HouseCardPhone)
	return nil
}

// SaveUserInput 成员输入，指针字段为空时不修改
type SaveUserInput struct {
	SiteID                uint
	Name                  string
	Email                 string
	MemberNumber          string
	NIF                   string
	TierID                uint
	CustomRates           *string
	MonthlyPremium        *models.Money
	MonthlyAdminDeduction *models.Money
}

// CreateUser 创建成员，未指定等级时使用最低等级
func (s *MemberService) CreateUser(ctx context.Context, input SaveUserInput) (*models.User, error) {
	catalog, err := s.tierService.Catalog(ctx, input.SiteID)
	if err != nil {
		return nil, err
	}
	if len(catalog.Tiers) == 0 {
		return nil, ErrTierCatalogEmpty
	}
	tierID := input.TierID
	if tierID == 0 {
		tierID = catalog.Tiers[0].ID
	}
	if catalog.ByID(tierID) == nil {
		return nil, ErrTierNotFound
	}
	now := time.Now()
	user := &models.User{
		SiteID:       input.SiteID,
		TierID:       tierID,
		ActivatedAt:  &now,
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.TrimSpace(input.Email),
		MemberNumber: strings.TrimSpace(input.MemberNumber),
		NIF:          strings.TrimSpace(input.NIF),
	}
	if err := applyUserOverrides(user, input); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser 更新成员资料、等级与佣金覆盖项；有效比例变化时同一事务内刷新其推荐树
func (s *MemberService) UpdateUser(ctx context.Context, id uint, input SaveUserInput) (*models.User, error) {
	user, err := s.GetUser(ctx, input.SiteID, id)
	if err != nil {
		return nil, err
	}
	previous := user.EffectiveRates()
	if input.TierID != 0 && input.TierID != user.TierID {
		catalog, err := s.tierService.Catalog(ctx, user.SiteID)
		if err != nil {
			return nil, err
		}
		tier := catalog.ByID(input.TierID)
		if tier == nil {
			return nil, ErrTierNotFound
		}
		user.TierID = tier.ID
		user.Tier = tier
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		user.Name = name
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		user.Email = email
	}
	if nif := strings.TrimSpace(input.NIF); nif != "" {
		user.NIF = nif
	}
	if err := applyUserOverrides(user, input); err != nil {
		return nil, err
	}
	user.UpdatedAt = time.Now()
	ratesChanged := !previous.Equal(user.EffectiveRates())
	err = s.treeService.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Update(user); err != nil {
			return err
		}
		if !ratesChanged {
			return nil
		}
		return s.treeService.ApplyRateVector(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, err
	}
	if ratesChanged {
		logger.Infow("member_rates_applied", "user_id", user.ID, "tier_id", user.TierID, "rates", user.EffectiveRates().String())
	}
	return user, nil
}

func applyUserOverrides(user *models.User, input SaveUserInput) error {
	if input.CustomRates != nil {
		raw := strings.TrimSpace(*input.CustomRates)
		if raw == "" {
			user.CustomRates = nil
		} else {
			rates, err := models.ParseRateVector(raw)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrRateVectorInvalid, err)
			}
			user.CustomRates = &rates
		}
	}
	if input.MonthlyPremium != nil {
		premium := *input.MonthlyPremium
		user.MonthlyPremium = &premium
	}
	if input.MonthlyAdminDeduction != nil {
		deduction := *input.MonthlyAdminDeduction
		user.MonthlyAdminDeduction = &deduction
	}
	return nil
}

// DeactivateUser 停用成员，停用后不再生成结算单也不参与等级晋升
func (s *MemberService) DeactivateUser(ctx context.Context, siteID, id uint) (*models.User, error) {
	user, err := s.GetUser(ctx, siteID, id)
	if err != nil {
		return nil, err
	}
	if user.DeactivatedAt != nil {
		return user, nil
	}
	now := time.Now()
	user.DeactivatedAt = &now
	user.UpdatedAt = now
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser 获取成员
func (s *MemberService) GetUser(ctx context.Context, siteID, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil || (siteID != 0 && user.SiteID != siteID) {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListUsers 成员列表
func (s *MemberService) ListUsers(ctx context.Context, filter repository.UserListFilter) ([]models.User, int64, error) {
	return s.userRepo.List(filter)
}
