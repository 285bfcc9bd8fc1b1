package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core/directory"
)

// seed loads a small demo directory so a fresh install has something to
// schedule against. Existing rows are left untouched.
func (cli *commandLine) seed() error {
	halls := []directory.Hall{
		{ID: uuid.New(), Label: "Room 101", Capacity: 30, Kind: directory.HallClassroom},
		{ID: uuid.New(), Label: "Room 102", Capacity: 30, Kind: directory.HallClassroom},
		{ID: uuid.New(), Label: "Science Lab", Capacity: 24, Kind: directory.HallLab},
		{ID: uuid.New(), Label: "Main Hall", Capacity: 120, Kind: directory.HallExam},
		{ID: uuid.New(), Label: "Annex Hall", Capacity: 60, Kind: directory.HallExam},
	}
	teachers := []directory.Teacher{
		{ID: uuid.New(), Name: "Amina Hassan", Email: "amina.hassan@school.test"},
		{ID: uuid.New(), Name: "John Okello", Email: "john.okello@school.test"},
		{ID: uuid.New(), Name: "Grace Mwangi", Email: "grace.mwangi@school.test"},
	}
	classes := []directory.Class{
		{ID: uuid.New(), Name: "Form 1A", RosterSize: 28},
		{ID: uuid.New(), Name: "Form 1B", RosterSize: 30},
		{ID: uuid.New(), Name: "Form 2A", RosterSize: 27},
	}
	subjects := []directory.Subject{
		{ID: uuid.New(), Name: "Mathematics"},
		{ID: uuid.New(), Name: "Physics"},
		{ID: uuid.New(), Name: "History"},
	}

	tx, err := cli.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, h := range halls {
		if _, err = tx.Exec(
			`INSERT INTO hall (id, label, capacity, kind) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			h.ID, h.Label, h.Capacity, h.Kind,
		); err != nil {
			return err
		}
	}
	for _, t := range teachers {
		if _, err = tx.Exec(
			`INSERT INTO teacher (id, name, email) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			t.ID, t.Name, t.Email,
		); err != nil {
			return err
		}
	}
	for _, c := range classes {
		if _, err = tx.Exec(
			`INSERT INTO class (id, name, roster_size) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			c.ID, c.Name, c.RosterSize,
		); err != nil {
			return err
		}
	}
	for _, s := range subjects {
		if _, err = tx.Exec(
			`INSERT INTO subject (id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			s.ID, s.Name,
		); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	fmt.Printf("seeded %d halls, %d teachers, %d classes, %d subjects\n",
		len(halls), len(teachers), len(classes), len(subjects))
	return nil
}
