package service

import (
	"context"
	"strings"
	"time"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"

	"gorm.io/gorm"
)

// CardService 卡片订单与发卡服务
type CardService struct {
	cardRepo    repository.CardRepository
	userRepo    repository.UserRepository
	edgeRepo    repository.TeamEdgeRepository
	siteRepo    repository.SiteRepository
	treeService *TreeService
	now         func() time.Time
}

// NewCardService 创建卡片服务
func NewCardService(
	cardRepo repository.CardRepository,
	userRepo repository.UserRepository,
	edgeRepo repository.TeamEdgeRepository,
	siteRepo repository.SiteRepository,
	treeService *TreeService,
) *CardService {
	return &CardService{
		cardRepo:    cardRepo,
		userRepo:    userRepo,
		edgeRepo:    edgeRepo,
		siteRepo:    siteRepo,
		treeService: treeService,
		now:         time.Now,
	}
}

// CreateCardOrderInput 卡片申领输入
type CreateCardOrderInput struct {
	SiteID   uint
	SellerID uint
	Quantity int
	Comment  string
}

// CreateOrder 卖家申领卡片
func (s *CardService) CreateOrder(ctx context.Context, input CreateCardOrderInput) (*models.CardOrder, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidInput
	}
	seller, err := s.userRepo.GetByID(input.SellerID)
	if err != nil {
		return nil, err
	}
	if seller == nil || (input.SiteID != 0 && seller.SiteID != input.SiteID) {
		return nil, ErrUserNotFound
	}
	order := &models.CardOrder{
		SiteID:   seller.SiteID,
		SellerID: seller.ID,
		Quantity: input.Quantity,
		Comment:  strings.TrimSpace(input.Comment),
	}
	if err := s.cardRepo.CreateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// ExpediteOrderInput 发货输入
type ExpediteOrderInput struct {
	SIMs []string
}

// ExpediteOrder 订单发货：创建卡片并扩展卖家及其上级的推荐树，全部在同一事务内
func (s *CardService) ExpediteOrder(ctx context.Context, orderID uint, input ExpediteOrderInput) ([]models.Card, error) {
	sims := make([]string, 0, len(input.SIMs))
	for _, sim := range input.SIMs {
		if sim = strings.TrimSpace(sim); sim != "" {
			sims = append(sims, sim)
		}
	}
	if len(sims) == 0 {
		return nil, ErrInvalidInput
	}

	var cards []models.Card
	err := s.treeService.Transaction(func(tx *gorm.DB) error {
		cardRepo := s.cardRepo.WithTx(tx)
		order, err := cardRepo.GetOrderByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrCardOrderNotFound
		}
		if order.ExpeditedAt != nil {
			return ErrCardOrderExpedited
		}
		if order.RejectedAt != nil {
			return ErrCardOrderRejected
		}

		now := s.now()
		sellerID := order.SellerID
		orderRef := order.ID
		cards = make([]models.Card, 0, len(sims))
		for _, sim := range sims {
			cards = append(cards, models.Card{
				SiteID:   order.SiteID,
				SIM:      sim,
				SellerID: &sellerID,
				OrderID:  &orderRef,
			})
		}
		if err := cardRepo.CreateBatch(cards); err != nil {
			return err
		}
		cardIDs := make([]uint, 0, len(cards))
		for _, card := range cards {
			cardIDs = append(cardIDs, card.ID)
		}
		if err := s.treeService.ExtendTree(ctx, tx, order.SellerID, cardIDs); err != nil {
			return err
		}
		order.ExpeditedAt = &now
		order.UpdatedAt = now
		return cardRepo.UpdateOrder(order)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("card_order_expedited", "order_id", orderID, "cards", len(cards))
	return cards, nil
}

// RejectOrder 拒绝未发货的订单
func (s *CardService) RejectOrder(ctx context.Context, orderID uint) (*models.CardOrder, error) {
	var order *models.CardOrder
	err := s.treeService.Transaction(func(tx *gorm.DB) error {
		cardRepo := s.cardRepo.WithTx(tx)
		current, err := cardRepo.GetOrderByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrCardOrderNotFound
		}
		if current.ExpeditedAt != nil {
			return ErrCardOrderExpedited
		}
		if current.RejectedAt != nil {
			return ErrCardOrderRejected
		}
		now := s.now()
		current.RejectedAt = &now
		current.UpdatedAt = now
		if err := cardRepo.UpdateOrder(current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelExpedition 撤销发货：发货 45 天内且没有卡片激活时，删除卡片及其推荐树边
func (s *CardService) CancelExpedition(ctx context.Context, orderID uint) (*models.CardOrder, error) {
	var order *models.CardOrder
	err := s.treeService.Transaction(func(tx *gorm.DB) error {
		cardRepo := s.cardRepo.WithTx(tx)
		current, err := cardRepo.GetOrderByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrCardOrderNotFound
		}
		if current.ExpeditedAt == nil {
			return ErrCardOrderNotExpedited
		}
		now := s.now()
		if current.ExpeditedAt.AddDate(0, 0, constants.CardOrderCancelWindowDays).Before(now) {
			return ErrCardOrderLocked
		}
		activated, err := cardRepo.CountActivatedByOrder(current.ID)
		if err != nil {
			return err
		}
		if activated > 0 {
			return ErrCardOrderLocked
		}

		cards, err := cardRepo.ListByOrder(current.ID)
		if err != nil {
			return err
		}
		cardIDs := make([]uint, 0, len(cards))
		for _, card := range cards {
			cardIDs = append(cardIDs, card.ID)
		}
		if _, err := s.edgeRepo.WithTx(tx).DeleteByCards(cardIDs); err != nil {
			return err
		}
		if _, err := cardRepo.DeleteByOrder(current.ID); err != nil {
			return err
		}
		current.ExpeditedAt = nil
		current.UpdatedAt = now
		if err := cardRepo.UpdateOrder(current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("card_order_expedition_cancelled", "order_id", orderID)
	return order, nil
}

// AssignOwnerCard 将卡片绑定为成员自己的卡片，成员之后的销售从这张卡片向上扩展
func (s *CardService) AssignOwnerCard(ctx context.Context, cardID, userID uint) (*models.Card, error) {
	var card *models.Card
	err := s.treeService.Transaction(func(tx *gorm.DB) error {
		current, err := s.cardRepo.WithTx(tx).GetByID(cardID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrCardNotFound
		}
		user, err := s.userRepo.WithTx(tx).GetByID(userID)
		if err != nil {
			return err
		}
		if user == nil || user.SiteID != current.SiteID {
			return ErrUserNotFound
		}
		if err := s.bindOwner(tx, current, user); err != nil {
			return err
		}
		card = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *CardService) bindOwner(tx *gorm.DB, card *models.Card, user *models.User) error {
	cardRepo := s.cardRepo.WithTx(tx)
	if card.OwnerID != nil && *card.OwnerID != user.ID {
		return ErrCardAlreadyOwned
	}
	owned, err := cardRepo.GetOwnedBy(user.ID)
	if err != nil {
		return err
	}
	if owned != nil && owned.ID != card.ID {
		return ErrCardAlreadyOwned
	}
	card.OwnerID = &user.ID
	card.UpdatedAt = s.now()
	return cardRepo.Update(card)
}

// AttachMemberCardInput 成员入驻时的卡片绑定输入
type AttachMemberCardInput struct {
	SiteID       uint
	UserID       uint
	Phone        string // 成员自己的卡号
	SponsorPhone string // 推荐人卡号，可为空
}

// AttachMemberCard 按卡号为成员绑定自有卡片。
// 卡号已存在时直接绑定；不存在时新建一张已激活卡片，挂在推荐人卡片（无效时为站点默认卡片）的持有人名下，
// 并为该持有人扩展推荐树。
func (s *CardService) AttachMemberCard(ctx context.Context, input AttachMemberCardInput) (*models.Card, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, ErrInvalidInput
	}
	var card *models.Card
	err := s.treeService.Transaction(func(tx *gorm.DB) error {
		cardRepo := s.cardRepo.WithTx(tx)
		user, err := s.userRepo.WithTx(tx).GetByID(input.UserID)
		if err != nil {
			return err
		}
		if user == nil || (input.SiteID != 0 && user.SiteID != input.SiteID) {
			return ErrUserNotFound
		}
		existing, err := cardRepo.GetByPhone(user.SiteID, phone)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := s.bindOwner(tx, existing, user); err != nil {
				return err
			}
			card = existing
			return nil
		}
		owned, err := cardRepo.GetOwnedBy(user.ID)
		if err != nil {
			return err
		}
		if owned != nil {
			return ErrCardAlreadyOwned
		}

		sponsorCard, err := s.resolveSponsorCard(tx, user.SiteID, input.SponsorPhone)
		if err != nil {
			return err
		}
		now := s.now()
		created := &models.Card{
			SiteID:      user.SiteID,
			SIM:         "new_" + phone,
			Phone:       phone,
			OwnerID:     &user.ID,
			ActivatedAt: &now,
		}
		if sponsorCard != nil {
			created.SellerID = sponsorCard.OwnerID
		}
		if err := cardRepo.Create(created); err != nil {
			return err
		}
		if created.SellerID != nil {
			if err := s.treeService.ExtendTree(ctx, tx, *created.SellerID, []uint{created.ID}); err != nil {
				return err
			}
		}
		card = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	var sellerID uint
	if card.SellerID != nil {
		sellerID = *card.SellerID
	}
	logger.Infow("card_member_attached", "user_id", input.UserID, "card_id", card.ID, "seller_id", sellerID)
	return card, nil
}

// resolveSponsorCard 推荐人卡片需绑定在职成员；否则退回站点默认卡片，均无则返回 nil
func (s *CardService) resolveSponsorCard(tx *gorm.DB, siteID uint, sponsorPhone string) (*models.Card, error) {
	cardRepo := s.cardRepo.WithTx(tx)
	if phone := strings.TrimSpace(sponsorPhone); phone != "" {
		card, err := cardRepo.GetByPhone(siteID, phone)
		if err != nil {
			return nil, err
		}
		if card != nil && card.OwnerID != nil {
			owner, err := s.userRepo.WithTx(tx).GetByID(*card.OwnerID)
			if err != nil {
				return nil, err
			}
			if owner != nil && !owner.Deactivated() {
				return card, nil
			}
		}
	}
	site, err := s.siteRepo.GetByID(siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrSiteNotFound
	}
	house := strings.TrimSpace(site.HouseCardPhone)
	if house == "" {
		return nil, nil
	}
	card, err := cardRepo.GetByPhone(siteID, house)
	if err != nil || card == nil || card.OwnerID == nil {
		return nil, err
	}
	return card, nil
}

// GetOrder 获取卡片订单
func (s *CardService) GetOrder(ctx context.Context, orderID uint) (*models.CardOrder, error) {
	order, err := s.cardRepo.GetOrderByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrCardOrderNotFound
	}
	return order, nil
}

// GetCard 获取站点内的卡片
func (s *CardService) GetCard(ctx context.Context, siteID, cardID uint) (*models.Card, error) {
	card, err := s.cardRepo.GetByID(cardID)
	if err != nil {
		return nil, err
	}
	if card == nil || card.SiteID != siteID {
		return nil, ErrCardNotFound
	}
	return card, nil
}

// ListCards 卡片列表
func (s *CardService) ListCards(ctx context.Context, filter repository.CardListFilter) ([]models.Card, int64, error) {
	return s.cardRepo.List(filter)
}
