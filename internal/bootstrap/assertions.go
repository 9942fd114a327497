package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/expression"
)

// AssertionViolation represents a single startup check failure
type AssertionViolation struct {
	Category    string // e.g. "MissingTable", "Pipeline"
	Severity    string // "error" or "warning"
	Object      string
	Description string
}

// AssertionResult contains all violations found during assertion checks
type AssertionResult struct {
	Violations []AssertionViolation
	Passed     bool
}

func (r *AssertionResult) add(category, severity, object, description string) {
	r.Violations = append(r.Violations, AssertionViolation{
		Category:    category,
		Severity:    severity,
		Object:      object,
		Description: description,
	})
}

// RunAssertions checks the database after bootstrap.
// Violations are logged; strictMode turns them into an error.
func RunAssertions(ctx context.Context, db *sql.DB, strictMode bool) (*AssertionResult, error) {
	log.Info().Msg("🔍 Running startup assertions...")

	result := &AssertionResult{Violations: []AssertionViolation{}, Passed: true}

	assertCriticalTablesExist(ctx, db, result)
	assertDidNotHireStageExists(ctx, db, result)
	assertActiveAdminExists(ctx, db, result)
	assertTemplateConditionsCompile(ctx, db, result)

	if len(result.Violations) == 0 {
		log.Info().Msg("✅ All assertions passed")
		return result, nil
	}

	result.Passed = false
	log.Warn().Int("count", len(result.Violations)).Msg("⚠️  Assertion violations found")
	for i, v := range result.Violations {
		log.Warn().Msgf("   %d. [%s] %s: %s", i+1, v.Severity, v.Category, v.Description)
	}

	if strictMode {
		return result, fmt.Errorf("assertion failures in strict mode: %d violation(s)", len(result.Violations))
	}
	return result, nil
}

// assertCriticalTablesExist verifies every declared table is queryable
func assertCriticalTablesExist(ctx context.Context, db *sql.DB, result *AssertionResult) {
	defs, err := TableDefinitions()
	if err != nil {
		result.add("Schema", "error", "tables.json", err.Error())
		return
	}
	for _, def := range defs {
		if _, err := db.ExecContext(ctx, "SELECT 1 FROM "+def.TableName+" LIMIT 1"); err != nil {
			result.add("MissingTable", "error", def.TableName,
				fmt.Sprintf("Table '%s' is missing from the database.", def.TableName))
		}
	}
}

// assertDidNotHireStageExists checks the default pipeline can receive stale leads
func assertDidNotHireStageExists(ctx context.Context, db *sql.DB, result *AssertionResult) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s s JOIN %s p ON p.id = s.pipeline_id
		WHERE p.is_default = TRUE AND s.kind = ?`, constants.TableStage, constants.TablePipeline)
	var count int
	if err := db.QueryRowContext(ctx, query, constants.StageKindDidNotHire).Scan(&count); err != nil {
		result.add("Pipeline", "error", constants.TableStage, err.Error())
		return
	}
	if count == 0 {
		result.add("Pipeline", "warning", constants.TableStage,
			fmt.Sprintf("Default pipeline has no '%s' stage; stale opportunities will not be relocated.", constants.DidNotHireStageName))
	}
}

// assertActiveAdminExists warns when nobody can manage users
func assertActiveAdminExists(ctx context.Context, db *sql.DB, result *AssertionResult) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE role = ? AND status = ?", constants.TableUser)
	var count int
	if err := db.QueryRowContext(ctx, query, constants.RoleAdmin, constants.UserStatusActive).Scan(&count); err != nil {
		result.add("Users", "error", constants.TableUser, err.Error())
		return
	}
	if count == 0 {
		result.add("Users", "warning", constants.TableUser, "No active admin users found. Run cmd/createadmin.")
	}
}

// assertTemplateConditionsCompile compiles every stored template condition
func assertTemplateConditionsCompile(ctx context.Context, db *sql.DB, result *AssertionResult) {
	query := fmt.Sprintf("SELECT id, condition_expr FROM %s WHERE condition_expr IS NOT NULL AND condition_expr <> ''", constants.TableTaskTemplate)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		result.add("Templates", "error", constants.TableTaskTemplate, err.Error())
		return
	}
	defer rows.Close()

	engine := expression.NewEngine()
	env := (&models.Opportunity{}).ConditionEnv()
	for rows.Next() {
		var id, condition string
		if err := rows.Scan(&id, &condition); err != nil {
			continue
		}
		if err := engine.Validate(condition, env); err != nil {
			result.add("Templates", "warning", id, fmt.Sprintf("Condition %q does not compile: %v", condition, err))
		}
	}
}
