package backend

import (
	"fmt"

	"finreport/internal/config"
	gsheet "finreport/internal/sheets/google"
	"finreport/internal/store/bigquery"
	"finreport/internal/store/mongo"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLiteDBPath holds transactions for the sqlite backend and report
	// history for mongo, sheets and bigquery.
	SQLiteDBPath string
	PostgresDSN  string

	Mongo    mongo.Config
	Sheets   gsheet.Config
	BigQuery bigquery.Config
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,
		Mongo: mongo.Config{
			URI:        appConfig.MongoURI,
			Database:   appConfig.MongoDatabase,
			Collection: appConfig.MongoCollection,
		},
		Sheets: gsheet.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
			OAuthClientJSON: appConfig.GoogleOAuthClientJSON,
			OAuthClientFile: appConfig.GoogleOAuthClientFile,
			OAuthTokenFile:  appConfig.GoogleOAuthTokenFile,
		},
		BigQuery: bigquery.Config{
			ProjectID: appConfig.BigQueryProject,
			Dataset:   appConfig.BigQueryDataset,
			Table:     appConfig.BigQueryTable,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	case MongoBackend:
		if c.Mongo.URI == "" || c.Mongo.Database == "" || c.Mongo.Collection == "" {
			return fmt.Errorf("Mongo URI, database and collection are required for mongo backend")
		}
	case SheetsBackend:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case BigQueryBackend:
		if c.BigQuery.ProjectID == "" {
			return fmt.Errorf("BigQuery project is required for bigquery backend")
		}
	case MemoryBackend:
	}

	if c.Type != MemoryBackend && c.Type != PostgresBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for report history with %s backend", c.Type)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, MongoBackend, SheetsBackend, BigQueryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
