package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core/directory"
)

type directoryRepository struct {
	db *DB
}

var _ directory.Directory = (*directoryRepository)(nil) // interface compliance check

func NewDirectory(db *DB) *directoryRepository {
	return &directoryRepository{db: db}
}

// seeding helpers, used by tests and the demo fixtures

func (repo *directoryRepository) AddHall(hall directory.Hall) directory.Hall {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if hall.ID == uuid.Nil {
		hall.ID = uuid.New()
	}
	repo.db.halls[hall.ID] = hall
	return hall
}

func (repo *directoryRepository) AddTeacher(teacher directory.Teacher) directory.Teacher {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if teacher.ID == uuid.Nil {
		teacher.ID = uuid.New()
	}
	repo.db.teachers[teacher.ID] = teacher
	return teacher
}

func (repo *directoryRepository) AddClass(class directory.Class) directory.Class {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if class.ID == uuid.Nil {
		class.ID = uuid.New()
	}
	repo.db.classes[class.ID] = class
	return class
}

func (repo *directoryRepository) AddSubject(subject directory.Subject) directory.Subject {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if subject.ID == uuid.Nil {
		subject.ID = uuid.New()
	}
	repo.db.subjects[subject.ID] = subject
	return subject
}

// directory.Directory

func (repo *directoryRepository) HallByID(ctx context.Context, id uuid.UUID) (directory.Hall, error) {
	if err := ctx.Err(); err != nil {
		return directory.Hall{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if hall, ok := repo.db.halls[id]; ok {
		return hall, nil
	}
	return directory.Hall{}, directory.ErrNotFound
}

func (repo *directoryRepository) TeacherByID(ctx context.Context, id uuid.UUID) (directory.Teacher, error) {
	if err := ctx.Err(); err != nil {
		return directory.Teacher{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if teacher, ok := repo.db.teachers[id]; ok {
		return teacher, nil
	}
	return directory.Teacher{}, directory.ErrNotFound
}

func (repo *directoryRepository) ClassByID(ctx context.Context, id uuid.UUID) (directory.Class, error) {
	if err := ctx.Err(); err != nil {
		return directory.Class{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if class, ok := repo.db.classes[id]; ok {
		return class, nil
	}
	return directory.Class{}, directory.ErrNotFound
}

func (repo *directoryRepository) SubjectByID(ctx context.Context, id uuid.UUID) (directory.Subject, error) {
	if err := ctx.Err(); err != nil {
		return directory.Subject{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if subject, ok := repo.db.subjects[id]; ok {
		return subject, nil
	}
	return directory.Subject{}, directory.ErrNotFound
}

func (repo *directoryRepository) ClassRosterSize(ctx context.Context, classID uuid.UUID) (int, error) {
	class, err := repo.ClassByID(ctx, classID)
	if err != nil {
		return 0, err
	}
	return class.RosterSize, nil
}
