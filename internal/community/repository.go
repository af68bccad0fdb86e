package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for community persistence operations.
type Repository interface {
	Create(ctx context.Context, community *Community) error
	Get(ctx context.Context, id string) (*Community, error)
	ListForAdmin(ctx context.Context, userID string) ([]Community, error)

	AddAdmin(ctx context.Context, communityID, userID string) (*Admin, error)
	ListAdmins(ctx context.Context, communityID string) ([]Admin, error)
	IsAdminOfTenant(ctx context.Context, tenantID, identity string) (bool, error)

	CreateAmenity(ctx context.Context, amenity *Amenity) error
	ListAmenities(ctx context.Context, communityID string) ([]Amenity, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed community repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a community and makes its creator the first admin, in
// one transaction. The ID is a generated UUID.
func (r *SQLiteRepository) Create(ctx context.Context, c *Community) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	c.ID = uuid.NewString()
	c.Name = strings.TrimSpace(c.Name)

	now := time.Now().UTC().Format(time.RFC3339)
	c.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning community transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO communities (id, name, created_by, created_at) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.CreatedBy, now); err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("inserting community: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO community_admins (community_id, user_id, created_at) VALUES (?, ?, ?)",
		c.ID, c.CreatedBy, now); err != nil {
		return fmt.Errorf("granting creator admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing community: %w", err)
	}
	return nil
}

// Get retrieves a community by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Community, error) {
	var c Community
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_by, created_at FROM communities WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommunityNotFound
		}
		return nil, fmt.Errorf("getting community %s: %w", id, err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &c, nil
}

// ListForAdmin returns the communities userID administers, by name.
func (r *SQLiteRepository) ListForAdmin(ctx context.Context, userID string) ([]Community, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.created_by, c.created_at
		 FROM communities c
		 JOIN community_admins a ON a.community_id = c.id
		 WHERE a.user_id = ?
		 ORDER BY c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing communities: %w", err)
	}
	defer rows.Close()

	communities := []Community{}
	for rows.Next() {
		var c Community
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning community: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		communities = append(communities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating communities: %w", err)
	}
	return communities, nil
}

// AddAdmin grants userID admin rights over communityID.
func (r *SQLiteRepository) AddAdmin(ctx context.Context, communityID, userID string) (*Admin, error) {
	if err := r.requireCommunity(ctx, communityID); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO community_admins (community_id, user_id, created_at) VALUES (?, ?, ?)",
		communityID, userID, now)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrAlreadyAdmin
		case isForeignKeyViolation(err):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("adding admin: %w", err)
	}

	admin := &Admin{CommunityID: communityID, UserID: userID}
	admin.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	return admin, nil
}

// ListAdmins returns the admins of communityID in grant order.
func (r *SQLiteRepository) ListAdmins(ctx context.Context, communityID string) ([]Admin, error) {
	if err := r.requireCommunity(ctx, communityID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT community_id, user_id, created_at FROM community_admins
		 WHERE community_id = ? ORDER BY created_at, user_id`, communityID)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	defer rows.Close()

	admins := []Admin{}
	for rows.Next() {
		var a Admin
		var createdAt string
		if err := rows.Scan(&a.CommunityID, &a.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning admin: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admins: %w", err)
	}
	return admins, nil
}

// IsAdminOfTenant reports whether identity administers tenantID. An unknown
// tenant returns ErrCommunityNotFound.
func (r *SQLiteRepository) IsAdminOfTenant(ctx context.Context, tenantID, identity string) (bool, error) {
	var exists, isAdmin int
	err := r.db.QueryRowContext(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM communities WHERE id = ?),
			EXISTS (SELECT 1 FROM community_admins WHERE community_id = ? AND user_id = ?)`,
		tenantID, tenantID, identity,
	).Scan(&exists, &isAdmin)
	if err != nil {
		return false, fmt.Errorf("checking admin of %s: %w", tenantID, err)
	}
	if exists == 0 {
		return false, ErrCommunityNotFound
	}
	return isAdmin == 1, nil
}

// CreateAmenity inserts an amenity. The ID is generated if empty.
func (r *SQLiteRepository) CreateAmenity(ctx context.Context, a *Amenity) error {
	if err := ValidateName(a.Name); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = "amn-" + uuid.NewString()
	}
	a.Name = strings.TrimSpace(a.Name)

	now := time.Now().UTC().Format(time.RFC3339)
	a.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO amenities (id, community_id, name, created_at) VALUES (?, ?, ?, ?)",
		a.ID, a.CommunityID, a.Name, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCommunityNotFound
		}
		return fmt.Errorf("inserting amenity %s: %w", a.ID, err)
	}
	return nil
}

// ListAmenities returns a community's amenities by name.
func (r *SQLiteRepository) ListAmenities(ctx context.Context, communityID string) ([]Amenity, error) {
	if err := r.requireCommunity(ctx, communityID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, community_id, name, created_at FROM amenities WHERE community_id = ? ORDER BY name",
		communityID)
	if err != nil {
		return nil, fmt.Errorf("listing amenities: %w", err)
	}
	defer rows.Close()

	amenities := []Amenity{}
	for rows.Next() {
		var a Amenity
		var createdAt string
		if err := rows.Scan(&a.ID, &a.CommunityID, &a.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning amenity: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		amenities = append(amenities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating amenities: %w", err)
	}
	return amenities, nil
}

func (r *SQLiteRepository) requireCommunity(ctx context.Context, id string) error {
	var exists int
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM communities WHERE id = ?)", id).Scan(&exists); err != nil {
		return fmt.Errorf("checking community %s: %w", id, err)
	}
	if exists == 0 {
		return ErrCommunityNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
