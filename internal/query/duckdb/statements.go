package duckdb

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/duckmesh/tablequery/internal/awscreds"
)

const secretName = "tablequery_s3"

var extensionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func installStatements(extension string) ([]string, error) {
	if !extensionNamePattern.MatchString(extension) {
		return nil, fmt.Errorf("invalid extension name %q", extension)
	}
	return []string{"INSTALL " + extension, "LOAD " + extension}, nil
}

// forceInstallStatements reinstalls an extension from a named repository
// (core, core_nightly) or a repository URL.
func forceInstallStatements(extension, repository string) ([]string, error) {
	if !extensionNamePattern.MatchString(extension) {
		return nil, fmt.Errorf("invalid extension name %q", extension)
	}
	repository = strings.TrimSpace(repository)
	if repository == "" {
		return nil, fmt.Errorf("extension repository is required")
	}
	source := repository
	if !extensionNamePattern.MatchString(repository) {
		source = quoteLiteral(repository)
	}
	return []string{
		fmt.Sprintf("FORCE INSTALL %s FROM %s", extension, source),
		"LOAD " + extension,
	}, nil
}

func settingStatements(settings Settings) []string {
	statements := make([]string, 0, 4)
	if settings.HomeDir != "" {
		statements = append(statements, "SET home_directory = "+quoteLiteral(settings.HomeDir))
	}
	if settings.ExtensionDir != "" {
		statements = append(statements, "SET extension_directory = "+quoteLiteral(settings.ExtensionDir))
	}
	if settings.MemoryLimit != "" {
		statements = append(statements, "SET memory_limit = "+quoteLiteral(settings.MemoryLimit))
	}
	if settings.Threads > 0 {
		statements = append(statements, fmt.Sprintf("SET threads = %d", settings.Threads))
	}
	return statements
}

func credentialChainSecretStatement(region string) string {
	options := []string{"TYPE s3", "PROVIDER credential_chain"}
	if region != "" {
		options = append(options, "REGION "+quoteLiteral(region))
	}
	return createSecret(options)
}

func staticSecretStatement(creds awscreds.Credentials) string {
	options := []string{
		"TYPE s3",
		"KEY_ID " + quoteLiteral(creds.AccessKeyID),
		"SECRET " + quoteLiteral(creds.SecretAccessKey),
	}
	if creds.SessionToken != "" {
		options = append(options, "SESSION_TOKEN "+quoteLiteral(creds.SessionToken))
	}
	if creds.Region != "" {
		options = append(options, "REGION "+quoteLiteral(creds.Region))
	}
	return createSecret(options)
}

func createSecret(options []string) string {
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)", secretName, strings.Join(options, ", "))
}

func attachStatement(catalogARN string, settings Settings) string {
	options := []string{"TYPE " + settings.CatalogType}
	if settings.EndpointType != "" {
		options = append(options, "ENDPOINT_TYPE "+settings.EndpointType)
	}
	return fmt.Sprintf("ATTACH %s AS %s (%s)", quoteLiteral(catalogARN), quoteIdent(settings.CatalogAlias), strings.Join(options, ", "))
}

func detachStatement(alias string) string {
	return "DETACH DATABASE IF EXISTS " + quoteIdent(alias)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// sessionStateQuery summarizes state a caller can leave behind in a database:
// the number of user-created catalog objects and attached databases, plus the
// current value of every setting.
const sessionStateQuery = `SELECT
	(SELECT count(*) FROM duckdb_tables() WHERE NOT internal)
	+ (SELECT count(*) FROM duckdb_views() WHERE NOT internal)
	+ (SELECT count(*) FROM duckdb_functions() WHERE NOT internal AND function_type IN ('macro', 'table_macro'))
	+ (SELECT count(*) FROM duckdb_sequences())
	+ (SELECT count(*) FROM duckdb_types() WHERE NOT internal)
	+ (SELECT count(*) FROM duckdb_databases() WHERE NOT internal AND database_name <> 'memory')
	+ (SELECT count(*) FROM duckdb_secrets() WHERE name <> '` + secretName + `') AS user_objects,
	(SELECT string_agg(name || '=' || coalesce(value, ''), ';' ORDER BY name) FROM duckdb_settings()) AS settings`
