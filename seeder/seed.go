package seeder

import (
	"log"

	"gorm.io/gorm"

	"domaintrust/models"
	"domaintrust/utils"
)

type seedEntry struct {
	value string
	kind  utils.EntryKind
}

// Known-bad registration domains plus the common webmail providers and
// partner domains accepted without network checks.
var seedEntries = []seedEntry{
	{"tokobeken.xyz", utils.KindBlacklisted},
	{"coredp.com", utils.KindBlacklisted},
	{"infolinkai.com", utils.KindBlacklisted},
	{"acaciaa.top", utils.KindBlacklisted},
	{"gudri.com", utils.KindBlacklisted},
	{"kimgmail.com", utils.KindBlacklisted},
	{"kenvanharen.com", utils.KindBlacklisted},
	{"cayxupro5.com", utils.KindBlacklisted},
	{"healthbeautynatural.site", utils.KindBlacklisted},
	{"boranora.com", utils.KindBlacklisted},
	{"habosurechinhhangvietnam.online", utils.KindBlacklisted},
	{"cloneads.top", utils.KindBlacklisted},
	{"denxsu.net", utils.KindBlacklisted},
	{"chupanhcuoidep.vn", utils.KindBlacklisted},
	{"polakim.cfd", utils.KindBlacklisted},

	{"gmail.com", utils.KindTrusted},
	{"hotmail.com", utils.KindTrusted},
	{"outlook.com", utils.KindTrusted},
	{"ua.pt", utils.KindTrusted},
	{"sapo.pt", utils.KindTrusted},
	{"blockbastards.io", utils.KindTrusted},
}

// Seed loads the initial allow/deny lists. Existing entries are left
// alone so reseeding is safe.
func Seed(db *gorm.DB, logger *log.Logger) error {
	registry := utils.NewRegistry(db, logger)

	for _, e := range seedEntries {
		entry := models.DomainEntry{
			Value:       e.value,
			Trusted:     e.kind == utils.KindTrusted,
			Blacklisted: e.kind == utils.KindBlacklisted,
		}
		res := db.Where(models.DomainEntry{Value: e.value, Trusted: entry.Trusted, Blacklisted: entry.Blacklisted}).
			FirstOrCreate(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			logger.Printf("Seeded %s entry: %s", e.kind, e.value)
		}
	}

	// Sanity pass over the configured registry state
	entries, err := registry.ListAll()
	if err != nil {
		return err
	}
	logger.Printf("Registry holds %d entries after seeding", len(entries))
	return nil
}
