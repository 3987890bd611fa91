package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// excelEpochOffset 表格日期序列号与 Unix 纪元相差的天数
const excelEpochOffset = 25569

var importDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02-01-2006",
}

// MovementService 卡片充值流水导入服务
type MovementService struct {
	movementRepo          repository.MovementRepository
	cardRepo              repository.CardRepository
	monthRepo             repository.MonthRepository
	siteRepo              repository.SiteRepository
	tierTransitionService *TierTransitionService
	ledgerService         *LedgerService
}

// NewMovementService 创建流水导入服务
func NewMovementService(
	movementRepo repository.MovementRepository,
	cardRepo repository.CardRepository,
	monthRepo repository.MonthRepository,
	siteRepo repository.SiteRepository,
	tierTransitionService *TierTransitionService,
	ledgerService *LedgerService,
) *MovementService {
	return &MovementService{
		movementRepo:          movementRepo,
		cardRepo:              cardRepo,
		monthRepo:             monthRepo,
		siteRepo:              siteRepo,
		tierTransitionService: tierTransitionService,
		ledgerService:         ledgerService,
	}
}

// ImportRowsInput 导入输入，每行为 列名 -> 单元格文本
type ImportRowsInput struct {
	SiteID  uint
	MonthID uint
	Source  string
	Rows    []map[string]string
}

// ImportResult 导入结果
type ImportResult struct {
	Import      *models.MovementImport `json:"import"`
	Transitions []TierTransition       `json:"transitions"`
}

// importRow 解析后的导入行
type importRow struct {
	movedAt     time.Time
	activatedAt time.Time
	sim         string
	phone       string
	value       decimal.Decimal
	raw         string
}

type importReport struct {
	builder strings.Builder
}

func (r *importReport) add(level, format string, args ...interface{}) {
	fmt.Fprintf(&r.builder, "%s [%s]: %s\n", strings.ToUpper(level), time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

func (r *importReport) String() string {
	return r.builder.String()
}

// ImportRows 导入一个账期的充值流水：
// 缺少必需列或行格式错误时整体失败且不写入任何数据；
// 不属于账期的行计为忽略，内容重复的行计为重复。
// 导入完成后检测等级晋升并刷新账期汇总。
func (s *MovementService) ImportRows(ctx context.Context, input ImportRowsInput) (*ImportResult, error) {
	site, err := s.siteRepo.GetByID(input.SiteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrSiteNotFound
	}
	month, err := s.monthRepo.GetByID(input.MonthID)
	if err != nil {
		return nil, err
	}
	if month == nil || month.SiteID != site.ID {
		return nil, ErrMonthNotFound
	}
	if month.IsClosed() {
		return nil, ErrMonthAlreadyClosed
	}
	rows, err := parseImportRows(input.Rows)
	if err != nil {
		return nil, err
	}

	report := &importReport{}
	report.add("info", "%d movements read from %s", len(rows), input.Source)
	item := &models.MovementImport{
		SiteID:    site.ID,
		MonthID:   month.ID,
		BatchNo:   uuid.NewString(),
		Source:    strings.TrimSpace(input.Source),
		StartedAt: time.Now(),
	}

	err = s.movementRepo.Transaction(func(tx *gorm.DB) error {
		movementRepo := s.movementRepo.WithTx(tx)
		cardRepo := s.cardRepo.WithTx(tx)
		if err := movementRepo.CreateImport(item); err != nil {
			return err
		}

		var houseSellerID *uint
		houseResolved := false
		occurrences := make(map[string]int)
		pending := make([]models.CardMovement, 0, len(rows))
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !month.Contains(row.movedAt) {
				report.add("info", "movement ignored, outside month (date: %s)", row.movedAt.Format("2006-01-02"))
				item.Ignored++
				continue
			}
			card, err := cardRepo.GetBySIM(site.ID, row.sim)
			if err != nil {
				return err
			}
			if card == nil {
				if !houseResolved {
					houseSellerID, err = s.houseSeller(cardRepo, site)
					if err != nil {
						return err
					}
					houseResolved = true
				}
				created := &models.Card{SiteID: site.ID, SIM: row.sim, SellerID: houseSellerID}
				if err := cardRepo.Create(created); err != nil {
					return err
				}
				report.add("info", "new card created under house seller (sim: %s, phone: %s)", row.sim, row.phone)
				item.Ignored++
				continue
			}
			if err := syncImportedCard(cardRepo, card, row); err != nil {
				return err
			}

			key := movementDedupKey(row, occurrences)
			pending = append(pending, models.CardMovement{
				SiteID:      site.ID,
				ImportID:    item.ID,
				MonthID:     month.ID,
				CardID:      card.ID,
				Value:       models.NewMoneyFromDecimal(row.value),
				ValueNet:    models.NewMoneyFromDecimal(netOfVAT(row.value, site.ReportVATPercent)),
				MovedAt:     row.movedAt,
				DedupKey:    key,
				CardExpired: card.ExpiredAt(row.movedAt, commissionWindow(site)),
			})
		}

		keys := make([]string, 0, len(pending))
		for _, movement := range pending {
			keys = append(keys, movement.DedupKey)
		}
		existing, err := movementRepo.ExistingDedupKeys(site.ID, keys)
		if err != nil {
			return err
		}
		fresh := make([]models.CardMovement, 0, len(pending))
		for _, movement := range pending {
			if _, ok := existing[movement.DedupKey]; ok {
				report.add("info", "duplicated movement (card: %d, date: %s, value: %s)",
					movement.CardID, movement.MovedAt.Format("2006-01-02"), movement.Value.String())
				item.Duplicated++
				continue
			}
			fresh = append(fresh, movement)
		}
		if err := movementRepo.CreateBatch(fresh); err != nil {
			return err
		}
		item.Imported = len(fresh)

		report.add("info", "import finished. %d imported, %d ignored, %d duplicated", item.Imported, item.Ignored, item.Duplicated)
		finishedAt := time.Now()
		item.FinishedAt = &finishedAt
		item.Report = report.String()
		return movementRepo.UpdateImport(item)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("movement_import_finished",
		"site_id", site.ID,
		"month_id", month.ID,
		"batch_no", item.BatchNo,
		"imported", item.Imported,
		"ignored", item.Ignored,
		"duplicated", item.Duplicated,
	)

	result := &ImportResult{Import: item}
	if s.tierTransitionService != nil {
		transitions, err := s.tierTransitionService.DetectTransitions(ctx, site.ID, month.ID)
		if err != nil {
			logger.Warnw("movement_import_tier_detect_failed", "month_id", month.ID, "error", err)
		}
		result.Transitions = transitions
	}
	if s.ledgerService != nil {
		if _, err := s.ledgerService.RefreshMonth(ctx, month.ID); err != nil {
			logger.Warnw("movement_import_month_refresh_failed", "month_id", month.ID, "error", err)
		}
	}
	return result, nil
}

// ListImports 导入批次列表
func (s *MovementService) ListImports(ctx context.Context, siteID, monthID uint) ([]models.MovementImport, error) {
	return s.movementRepo.ListImports(siteID, monthID)
}

// GetImport 获取导入批次
func (s *MovementService) GetImport(ctx context.Context, id uint) (*models.MovementImport, error) {
	item, err := s.movementRepo.GetImportByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrImportNotFound
	}
	return item, nil
}

func (s *MovementService) houseSeller(cardRepo repository.CardRepository, site *models.Site) (*uint, error) {
	phone := strings.TrimSpace(site.HouseCardPhone)
	if phone == "" {
		return nil, nil
	}
	card, err := cardRepo.GetByPhone(site.ID, phone)
	if err != nil || card == nil {
		return nil, err
	}
	return card.OwnerID, nil
}

// syncImportedCard 首次出现时记录激活日期，手机号变化且未被其他卡片占用时更新手机号
func syncImportedCard(cardRepo repository.CardRepository, card *models.Card, row importRow) error {
	changed := false
	if card.ActivatedAt == nil && !row.activatedAt.IsZero() {
		activatedAt := row.activatedAt
		card.ActivatedAt = &activatedAt
		changed = true
	}
	if row.phone != "" && card.Phone != row.phone {
		other, err := cardRepo.GetByPhone(card.SiteID, row.phone)
		if err != nil {
			return err
		}
		if other == nil {
			card.Phone = row.phone
			changed = true
		}
	}
	if !changed {
		return nil
	}
	card.UpdatedAt = time.Now()
	return cardRepo.Update(card)
}

// movementDedupKey 按内容生成去重键，同一批次内重复出现的内容追加序号
func movementDedupKey(row importRow, occurrences map[string]int) string {
	content := fmt.Sprintf("%s_%s_%s_%s", row.movedAt.UTC().Format(time.RFC3339), row.sim, row.phone, row.raw)
	key := uuid.NewMD5(uuid.NameSpaceOID, []byte(content)).String()
	occurrences[key]++
	if n := occurrences[key]; n > 1 {
		key = fmt.Sprintf("%s_%d", key, n)
	}
	return key
}

func netOfVAT(value, vatPercent decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(vatPercent.Div(hundred))
	if divisor.IsZero() {
		return value
	}
	return value.Div(divisor)
}

func commissionWindow(site *models.Site) int {
	if site.CommissionWindowMonths > 0 {
		return site.CommissionWindowMonths
	}
	return constants.DefaultCommissionWindowMonths
}

func parseImportRows(raw []map[string]string) ([]importRow, error) {
	rows := make([]importRow, 0, len(raw))
	for i, cells := range raw {
		for _, column := range constants.ImportRequiredColumns {
			if _, ok := cells[column]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrImportColumnMissing, column)
			}
		}
		movedAt, err := parseImportDate(cells[constants.ImportColumnRechargeDate])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrImportRowInvalid, i+1, err)
		}
		var activatedAt time.Time
		if text := strings.TrimSpace(cells[constants.ImportColumnActivationDate]); text != "" {
			activatedAt, err = parseImportDate(text)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrImportRowInvalid, i+1, err)
			}
		}
		valueText := strings.TrimSpace(strings.ReplaceAll(cells[constants.ImportColumnRechargeValue], ",", "."))
		value, err := decimal.NewFromString(valueText)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrImportRowInvalid, i+1, err)
		}
		sim := strings.TrimSpace(cells[constants.ImportColumnSIM])
		if sim == "" {
			return nil, fmt.Errorf("%w: row %d: empty sim", ErrImportRowInvalid, i+1)
		}
		rows = append(rows, importRow{
			movedAt:     movedAt,
			activatedAt: activatedAt,
			sim:         sim,
			phone:       normalizePhone(cells[constants.ImportColumnPhone]),
			value:       value,
			raw:         valueText,
		})
	}
	return rows, nil
}

// normalizePhone 去除国家前缀
func normalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	return strings.TrimPrefix(phone, constants.ImportPhoneCountryPrefix)
}

// parseImportDate 支持表格日期序列号与常见日期文本
func parseImportDate(raw string) (time.Time, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if serial, err := strconv.ParseFloat(text, 64); err == nil {
		seconds := math.Round((serial - excelEpochOffset) * 86400)
		return time.Unix(int64(seconds), 0).UTC(), nil
	}
	for _, layout := range importDateLayouts {
		if parsed, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date %q", text)
}
