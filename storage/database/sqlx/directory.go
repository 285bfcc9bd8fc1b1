package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core/directory"
)

type directoryRepository struct {
	db *sqlx.DB
}

var _ directory.Directory = (*directoryRepository)(nil) // interface compliance check

func NewDirectory(db *sqlx.DB) *directoryRepository {
	return &directoryRepository{db: db}
}

func (repo *directoryRepository) HallByID(ctx context.Context, id uuid.UUID) (directory.Hall, error) {
	var hall directory.Hall
	err := repo.db.QueryRowContext(ctx,
		"SELECT id, label, capacity, kind FROM hall WHERE id = $1", id).
		Scan(&hall.ID, &hall.Label, &hall.Capacity, &hall.Kind)
	if err == sql.ErrNoRows {
		return directory.Hall{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Hall{}, errors.Wrap(err, "getting hall")
	}
	return hall, nil
}

func (repo *directoryRepository) TeacherByID(ctx context.Context, id uuid.UUID) (directory.Teacher, error) {
	var teacher directory.Teacher
	err := repo.db.QueryRowContext(ctx,
		"SELECT id, name, email FROM teacher WHERE id = $1", id).
		Scan(&teacher.ID, &teacher.Name, &teacher.Email)
	if err == sql.ErrNoRows {
		return directory.Teacher{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Teacher{}, errors.Wrap(err, "getting teacher")
	}
	return teacher, nil
}

func (repo *directoryRepository) ClassByID(ctx context.Context, id uuid.UUID) (directory.Class, error) {
	var class directory.Class
	err := repo.db.QueryRowContext(ctx,
		"SELECT id, name, roster_size FROM class WHERE id = $1", id).
		Scan(&class.ID, &class.Name, &class.RosterSize)
	if err == sql.ErrNoRows {
		return directory.Class{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Class{}, errors.Wrap(err, "getting class")
	}
	return class, nil
}

func (repo *directoryRepository) SubjectByID(ctx context.Context, id uuid.UUID) (directory.Subject, error) {
	var subject directory.Subject
	err := repo.db.QueryRowContext(ctx,
		"SELECT id, name FROM subject WHERE id = $1", id).
		Scan(&subject.ID, &subject.Name)
	if err == sql.ErrNoRows {
		return directory.Subject{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Subject{}, errors.Wrap(err, "getting subject")
	}
	return subject, nil
}

func (repo *directoryRepository) ClassRosterSize(ctx context.Context, classID uuid.UUID) (int, error) {
	class, err := repo.ClassByID(ctx, classID)
	if err != nil {
		return 0, err
	}
	return class.RosterSize, nil
}
