package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mepa-comp/scoring-system/models"
)

var (
	ErrStaffNotFound      = errors.New("staff not found")
	ErrStaffEmailConflict = errors.New("staff already registered for this event")
	ErrStaffUserConflict  = errors.New("user is already staff of this event")
	ErrStaffEventInvalid  = errors.New("staff event conflict or invalid")
)

// StaffRepository определяет интерфейс для работы с персоналом событий.
type StaffRepository interface {
	Create(ctx context.Context, staff *models.Staff) error
	GetByID(ctx context.Context, id, eventID int) (*models.Staff, error)
	GetByEventAndEmail(ctx context.Context, eventID int, email string) (*models.Staff, error)
	GetByEventAndUser(ctx context.Context, eventID, userID int) (*models.Staff, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.Staff, error)
	Update(ctx context.Context, staff *models.Staff) error

	// GetOrCreate возвращает существующую запись по (email, event) или
	// создает новую. Вторым значением сообщает, была ли запись создана.
	GetOrCreate(ctx context.Context, staff *models.Staff) (bool, error)
}

type postgresStaffRepository struct {
	db *sql.DB
}

func NewPostgresStaffRepository(db *sql.DB) StaffRepository {
	return &postgresStaffRepository{db: db}
}

const staffColumns = `id, full_name, registration_email, is_manager, user_id, event_id, created_at`

func scanStaff(rowScanner interface{ Scan(...interface{}) error }) (*models.Staff, error) {
	var s models.Staff
	err := rowScanner.Scan(
		&s.ID, &s.FullName, &s.RegistrationEmail, &s.IsManager,
		&s.UserID, &s.EventID, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	return &s, nil
}

func mapStaffError(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case "staff_registration_email_event_id_key":
				return ErrStaffEmailConflict
			case "staff_user_id_event_id_key":
				return ErrStaffUserConflict
			}
		case "23503": // foreign_key_violation
			return ErrStaffEventInvalid
		}
	}
	return err
}

func (r *postgresStaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	query := `
		INSERT INTO staff (full_name, registration_email, is_manager, user_id, event_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		staff.FullName,
		staff.RegistrationEmail,
		staff.IsManager,
		staff.UserID,
		staff.EventID,
	).Scan(&staff.ID, &staff.CreatedAt)
	if err != nil {
		return mapStaffError(err)
	}
	return nil
}

func (r *postgresStaffRepository) GetByID(ctx context.Context, id, eventID int) (*models.Staff, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE id = $1 AND event_id = $2`, id, eventID)
	return scanStaff(row)
}

func (r *postgresStaffRepository) GetByEventAndEmail(ctx context.Context, eventID int, email string) (*models.Staff, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE event_id = $1 AND registration_email = $2`,
		eventID, email)
	return scanStaff(row)
}

func (r *postgresStaffRepository) GetByEventAndUser(ctx context.Context, eventID, userID int) (*models.Staff, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE event_id = $1 AND user_id = $2`,
		eventID, userID)
	return scanStaff(row)
}

func (r *postgresStaffRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Staff, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE event_id = $1 ORDER BY full_name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	staff := make([]*models.Staff, 0)
	for rows.Next() {
		s, scanErr := scanStaff(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		staff = append(staff, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return staff, nil
}

func (r *postgresStaffRepository) Update(ctx context.Context, staff *models.Staff) error {
	query := `
		UPDATE staff SET
			full_name = $1, registration_email = $2, is_manager = $3, user_id = $4
		WHERE id = $5 AND event_id = $6`

	result, err := r.db.ExecContext(ctx, query,
		staff.FullName, staff.RegistrationEmail, staff.IsManager, staff.UserID,
		staff.ID, staff.EventID,
	)
	if err != nil {
		return mapStaffError(err)
	}
	return checkAffectedRows(result, ErrStaffNotFound)
}

func (r *postgresStaffRepository) GetOrCreate(ctx context.Context, staff *models.Staff) (bool, error) {
	existing, err := r.GetByEventAndEmail(ctx, staff.EventID, staff.RegistrationEmail)
	if err == nil {
		*staff = *existing
		return false, nil
	}
	if !errors.Is(err, ErrStaffNotFound) {
		return false, fmt.Errorf("failed to look up staff by email: %w", err)
	}

	if createErr := r.Create(ctx, staff); createErr != nil {
		// Гонка двух импортов: строка появилась между SELECT и INSERT.
		if errors.Is(createErr, ErrStaffEmailConflict) {
			existing, getErr := r.GetByEventAndEmail(ctx, staff.EventID, staff.RegistrationEmail)
			if getErr != nil {
				return false, getErr
			}
			*staff = *existing
			return false, nil
		}
		return false, createErr
	}
	return true, nil
}
