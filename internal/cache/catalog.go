package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/models"
)

const tierCatalogCacheTTL = 10 * time.Minute

func tierCatalogKey(siteID uint) string {
	return fmt.Sprintf("%s:site:%d", constants.CacheKeyTierCatalog, siteID)
}

// GetTierCatalog 获取站点等级目录快照
func GetTierCatalog(ctx context.Context, siteID uint) ([]models.Tier, bool, error) {
	if siteID == 0 {
		return nil, false, nil
	}
	var tiers []models.Tier
	hit, err := GetJSON(ctx, tierCatalogKey(siteID), &tiers)
	if err != nil || !hit {
		return nil, hit, err
	}
	return tiers, true, nil
}

// SetTierCatalog 写入站点等级目录快照
func SetTierCatalog(ctx context.Context, siteID uint, tiers []models.Tier) error {
	if siteID == 0 {
		return nil
	}
	return SetJSON(ctx, tierCatalogKey(siteID), tiers, tierCatalogCacheTTL)
}

// DelTierCatalog 删除站点等级目录快照
func DelTierCatalog(ctx context.Context, siteID uint) error {
	if siteID == 0 {
		return nil
	}
	return Del(ctx, tierCatalogKey(siteID))
}
