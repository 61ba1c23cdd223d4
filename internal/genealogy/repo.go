package genealogy

import (
	"context"
	"errors"

	"github.com/suPer8Hu/kinfolk/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the genealogy tables.
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.Person{}, &models.Marriage{})
}

func (r *Repo) ListPeople(ctx context.Context) ([]models.Person, error) {
	var people []models.Person
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&people).Error; err != nil {
		return nil, err
	}
	return people, nil
}

func (r *Repo) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	var p models.Person
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) CountPeople(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Person{}).Count(&n).Error
	return n, err
}

func (r *Repo) HomePerson(ctx context.Context) (*models.Person, error) {
	var p models.Person
	if err := r.db.WithContext(ctx).
		Where("is_home_person = ?", true).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func clearHomeFlag(tx *gorm.DB, exceptID string) error {
	return tx.Model(&models.Person{}).
		Where("is_home_person = ? AND id <> ?", true, exceptID).
		Update("is_home_person", false).Error
}

// CreatePerson inserts p. When p is the home person every other flag is
// cleared in the same transaction.
func (r *Repo) CreatePerson(ctx context.Context, p *models.Person) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.IsHomePerson {
			if err := clearHomeFlag(tx, p.ID); err != nil {
				return err
			}
		}
		return tx.Create(p).Error
	})
}

// UpdatePerson applies cols to the person and returns the stored row.
func (r *Repo) UpdatePerson(ctx context.Context, id string, cols map[string]any) (*models.Person, error) {
	var out models.Person
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if home, ok := cols["is_home_person"].(bool); ok && home {
			if err := clearHomeFlag(tx, id); err != nil {
				return err
			}
		}
		if len(cols) > 0 {
			if err := tx.Model(&models.Person{}).Where("id = ?", id).Updates(cols).Error; err != nil {
				return err
			}
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePerson removes the person, clears parent references to them and drops
// their marriages.
func (r *Repo) DeletePerson(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Person{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&models.Person{}).
			Where("mother_id = ?", id).
			Update("mother_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Person{}).
			Where("father_id = ?", id).
			Update("father_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("spouse1_id = ? OR spouse2_id = ?", id, id).
			Delete(&models.Marriage{}).Error
	})
}

func (r *Repo) ListMarriages(ctx context.Context) ([]models.Marriage, error) {
	var ms []models.Marriage
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return ms, nil
}

func (r *Repo) GetMarriage(ctx context.Context, id string) (*models.Marriage, error) {
	var m models.Marriage
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) CreateMarriage(ctx context.Context, m *models.Marriage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) UpdateMarriage(ctx context.Context, id string, cols map[string]any) (*models.Marriage, error) {
	var out models.Marriage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(cols) > 0 {
			if err := tx.Model(&models.Marriage{}).Where("id = ?", id).Updates(cols).Error; err != nil {
				return err
			}
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) DeleteMarriage(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Marriage{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
