package repositories

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"fieldhub/internal/platform/models"
)

func integrationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "provider", "category", "status", "credentials", "sync_direction",
		"sync_cadence_minutes", "field_mappings", "events", "total_syncs", "successful_syncs",
		"failed_syncs", "records_synced", "last_sync_at", "last_error", "created_at",
		"updated_at", "disabled_at",
	})
}

func TestIntegrationRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewIntegrationRepository(db)

	rows := integrationRows().AddRow(
		"int_123", "Billing", "stripe", "payment", "active",
		`{"api_key":"sk_test","webhook_secret":"whsec_in","is_encrypted":true}`,
		"two-way", 15, `{"DisplayName":"name"}`, `["invoice.paid"]`,
		4, 3, 1, 250, int64(1700000000), "last boom", int64(1690000000), int64(1700000000), nil,
	)

	mock.ExpectQuery("SELECT (.+) FROM integrations WHERE id = ?").
		WithArgs("int_123").
		WillReturnRows(rows)

	integration, err := repo.GetByID("int_123")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if integration == nil {
		t.Fatal("Expected integration, got nil")
	}
	if integration.Provider != "stripe" || integration.Category != "payment" {
		t.Errorf("Unexpected identity: %s/%s", integration.Provider, integration.Category)
	}
	if integration.Credentials.APIKey != "sk_test" || !integration.Credentials.IsEncrypted {
		t.Errorf("Credentials column did not decode: %+v", integration.Credentials)
	}
	if integration.Credentials.WebhookSecret != "whsec_in" {
		t.Errorf("Expected webhook secret to decode, got %q", integration.Credentials.WebhookSecret)
	}
	if integration.FieldMappings["DisplayName"] != "name" {
		t.Errorf("Field mappings did not decode: %v", integration.FieldMappings)
	}
	if integration.LastSyncAt == nil || *integration.LastSyncAt != 1700000000 {
		t.Errorf("Expected last_sync_at to decode, got %v", integration.LastSyncAt)
	}
	if integration.Disabled() {
		t.Error("NULL disabled_at must read as not disabled")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIntegrationRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewIntegrationRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM integrations WHERE id = ?").
		WithArgs("int_missing").
		WillReturnError(sql.ErrNoRows)

	integration, err := repo.GetByID("int_missing")
	if err != nil {
		t.Fatalf("Expected nil error for missing row, got %v", err)
	}
	if integration != nil {
		t.Errorf("Expected nil integration, got %+v", integration)
	}
}

func TestIntegrationRepository_Disable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewIntegrationRepository(db)

	mock.ExpectExec("UPDATE integrations SET status = (.+) WHERE id = (.+) AND disabled_at IS NULL").
		WithArgs(models.IntegrationStatusInactive, sqlmock.AnyArg(), sqlmock.AnyArg(), "int_123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Disable("int_123"); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIntegrationRepository_RecordSyncOutcome(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewIntegrationRepository(db)

	// Success rolls into successful_syncs.
	mock.ExpectExec("UPDATE integrations").
		WithArgs(1, 0, 42, sqlmock.AnyArg(), sqlmock.AnyArg(), "int_123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.RecordSyncOutcome("int_123", true, 42); err != nil {
		t.Fatalf("RecordSyncOutcome failed: %v", err)
	}

	// Failure rolls into failed_syncs.
	mock.ExpectExec("UPDATE integrations").
		WithArgs(0, 1, 0, sqlmock.AnyArg(), sqlmock.AnyArg(), "int_123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.RecordSyncOutcome("int_123", false, 0); err != nil {
		t.Fatalf("RecordSyncOutcome failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIntegrationRepository_ListByProvider(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewIntegrationRepository(db)

	rows := integrationRows().
		AddRow("int_1", "A", "stripe", "payment", "active", `{}`, "two-way", 0, `{}`, `[]`,
			0, 0, 0, 0, nil, nil, int64(1), int64(1), nil).
		AddRow("int_2", "B", "stripe", "payment", "configuring", `{}`, "two-way", 0, `{}`, `[]`,
			0, 0, 0, 0, nil, nil, int64(2), int64(2), nil)

	mock.ExpectQuery("SELECT (.+) FROM integrations\\s+WHERE provider = (.+) AND disabled_at IS NULL").
		WithArgs("stripe").
		WillReturnRows(rows)

	list, err := repo.ListByProvider("stripe")
	if err != nil {
		t.Fatalf("ListByProvider failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 integrations, got %d", len(list))
	}
	if list[0].ID != "int_1" || list[1].ID != "int_2" {
		t.Errorf("Unexpected order: %s, %s", list[0].ID, list[1].ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
