package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/tsanzi/ratiba/apps/api/echo"
	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/exam"
	"github.com/tsanzi/ratiba/core/schedule"
	emailsvc "github.com/tsanzi/ratiba/services/email"
	eventsvc "github.com/tsanzi/ratiba/services/events"
	logsvc "github.com/tsanzi/ratiba/services/logger"
	"github.com/tsanzi/ratiba/storage/database"
	sqlxrepos "github.com/tsanzi/ratiba/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	errAndDie(err)

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	dir := sqlxrepos.NewDirectory(db)
	timetableRepo := sqlxrepos.NewTimetableRepository(db)
	examRepo := sqlxrepos.NewExamRepository(db)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	sink := eventsvc.NewDispatcher(logger, mailSvc, dir)

	validate, translator := core.NewValidator()

	bounds, err := schedule.ParseDayBounds(conf.Schedule)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing school-day bounds: %v", err), err)
	}

	timetableSvc := schedule.NewService(timetableRepo, examRepo, dir, validate, sink, bounds)
	examSvc := exam.NewService(examRepo, timetableRepo, dir, validate, sink, bounds)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			TimetableSvc: timetableSvc,
			ExamSvc:      examSvc,
			Validate:     validate,
			Translator:   translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
