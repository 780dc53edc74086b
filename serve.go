package main

import (
	"context"
	"docflow/account"
	"docflow/bizerror"
	"docflow/client/es"
	"docflow/common"
	"docflow/config"
	"docflow/domain/approval"
	"docflow/domain/document"
	"docflow/domain/flow"
	"docflow/event"
	"docflow/infra/tracing"
	"docflow/persistence"
	"docflow/session"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v3"
)

var systemSession = session.NewSession(context.Background(), session.Identity{Name: "system"})

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Migrate the database and serve the http api",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Listen address",
				Value:   ":80",
				Sources: cli.EnvVars("LISTEN_ADDR"),
			},
			&cli.StringFlag{
				Name:    "automation-endpoint",
				Usage:   "Automation endpoint notified of approval outcomes, notifications are only logged",
				Sources: cli.EnvVars("AUTOMATION_ENDPOINT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			common.SetupLogger(command.String("log-level"), command.String("log-format"))

			closer, err := tracing.InitGlobalTracer(common.ServiceName)
			if err != nil {
				return fmt.Errorf("init tracer: %w", err)
			}
			defer closer.Close()

			catalog, err := config.LoadCatalog(command.String("catalog"))
			if err != nil {
				return err
			}
			ds, err := startDataSource(command)
			if err != nil {
				return err
			}
			defer ds.Stop()
			if err := migrate(ds, catalog); err != nil {
				return err
			}

			pubSub := event.NewAuditPubSub()
			defer pubSub.Close()
			event.RegisterHandlers(event.PublishHandler(pubSub))
			notifier := event.NewAutomationNotifier(command.String("automation-endpoint"),
				event.ActionWorkflowCompleted, event.ActionWorkflowRejected)
			if err := notifier.Run(ctx, pubSub); err != nil {
				return err
			}
			if es.Enabled() {
				client, err := es.CreateClientFromEnv()
				if err != nil {
					return err
				}
				es.ActiveESClient = client
				event.RegisterHandlers(event.IndexHandler)
			}

			directory := account.NewUserDirectory()
			engine := approval.NewEngine(catalog, directory, document.Store{})

			r := gin.Default()
			r.Use(tracing.TracingIngress(), bizerror.ErrorHandling())
			r.GET("/", func(c *gin.Context) {
				c.String(http.StatusOK, common.ServiceName)
			})
			actor := session.ActorFilter(directory.ResolveIdentity)
			account.RegisterUsersRestAPI(r, actor)
			flow.RegisterWorkflowsRestAPI(r, actor)
			document.RegisterDocumentsRestAPI(r, catalog, actor)
			approval.RegisterInstancesRestAPI(r, engine, actor)
			event.RegisterAuditRestAPI(r, actor)

			listen := command.String("listen")
			logrus.WithField("listen", listen).Info("service start")
			return r.Run(listen)
		},
	}
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the schema, seed users and install the built-in workflows",
		Action: func(ctx context.Context, command *cli.Command) error {
			common.SetupLogger(command.String("log-level"), command.String("log-format"))

			catalog, err := config.LoadCatalog(command.String("catalog"))
			if err != nil {
				return err
			}
			ds, err := startDataSource(command)
			if err != nil {
				return err
			}
			defer ds.Stop()
			return migrate(ds, catalog)
		},
	}
}

func startDataSource(command *cli.Command) (*persistence.DataSourceManager, error) {
	dbConfig, err := persistence.ParseDatabaseConfig(command.String("database-driver"), command.String("database-url"))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	// create database (no conflict)
	if dbConfig.DriverType == persistence.DriverMysql {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			return nil, fmt.Errorf("prepare database: %w", err)
		}
	}
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	persistence.ActiveDataSourceManager = ds
	return ds, nil
}

// migrate is idempotent, concurrent instances may race on the built-in workflows
func migrate(ds *persistence.DataSourceManager, catalog *config.Catalog) error {
	db := ds.GormDB(context.Background())
	if err := db.AutoMigrate(&account.User{}, &flow.WorkflowDefinition{}, &flow.WorkflowStep{},
		&document.Document{}, &document.Version{}, &approval.Instance{}, &approval.StepExecution{},
		&event.EventRecord{}).Error; err != nil {
		return fmt.Errorf("database migration: %w", err)
	}
	if _, err := account.SeedUsers(db, catalog.Users); err != nil {
		return err
	}
	if _, err := flow.InstallBuiltinTemplates(catalog, systemSession); err != nil {
		return err
	}
	return nil
}
