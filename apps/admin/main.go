package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/review"
	"github.com/fetc/proposals/core/stepper"
	"github.com/fetc/proposals/core/user"
	emailsvc "github.com/fetc/proposals/services/email"
	logsvc "github.com/fetc/proposals/services/logger"
	"github.com/fetc/proposals/storage/database"
	sqlxrepos "github.com/fetc/proposals/storage/database/sqlx"
	"github.com/fetc/proposals/storage/files"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		errAndDie(err)
	}
	db, err := database.Open(conf)
	errAndDie(err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attachment.InitValidators(validate, translator)
	stepper.InitValidators(validate, translator)

	appLogger := logsvc.NewStdLogger(logger)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	reviewSvc := review.NewService(review.Deps{
		Conf:        conf,
		Proposals:   sqlxrepos.NewProposalRepository(db),
		Attachments: sqlxrepos.NewAttachmentRepository(db),
		Users:       usrSvc,
		Files:       files.NewStore(conf.MediaRoot),
		Mailer:      emailsvc.NewConsoleService(conf, appLogger),
		Logger:      appLogger,
		Validate:    validate,
		Translator:  translator,
	})

	// every command but migrate expects an up to date schema
	if len(os.Args) > 1 && os.Args[1] != "migrate" {
		errAndDie(database.Migrate(context.Background(), db))
	}

	// start CLI
	cli := commandLine{
		db:        db,
		usrSvc:    usrSvc,
		reviewSvc: reviewSvc,
		validate:  validate,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
