package reconcile

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenDB opens (or creates) the SQLite audit store and migrates its schema.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ProcessedFile{}, &AdmittedHash{}, &RejectedRecord{}, &RunRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

// loadAdmittedHashes returns the persisted dedup set for a target date.
func loadAdmittedHashes(db *gorm.DB, date string) ([]string, error) {
	var hashes []string
	err := db.Model(&AdmittedHash{}).Where("date = ?", date).Pluck("hash", &hashes).Error
	return hashes, err
}

// saveAdmittedHashes merges new hashes into the persisted set for a date.
// Conflicts with already-persisted hashes are ignored.
func saveAdmittedHashes(db *gorm.DB, date string, runID string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, h := range hashes {
			row := AdmittedHash{Date: date, Hash: h, RunID: runID}
			if err := tx.Where("date = ? AND hash = ?", date, h).FirstOrCreate(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
