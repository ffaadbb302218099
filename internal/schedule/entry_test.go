package schedule

import (
	"testing"
	"time"

	"campus_hub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDetails() Details {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	return Details{
		Title:            "Математический анализ",
		Teacher:          "Иванов И.И.",
		StartsAt:         start,
		EndsAt:           start.Add(90 * time.Minute),
		DeliveryType:     models.DeliveryOffline,
		PhysicalLocation: "Ауд. 101",
	}
}

func TestNewEntryValid(t *testing.T) {
	entry, err := NewEntry(1, models.SourceAdminLesson, 42, validDetails())
	require.NoError(t, err)
	assert.Equal(t, uint(1), entry.TenantID)
	assert.Equal(t, models.SourceAdminLesson, entry.SourceType)
	assert.Equal(t, uint(42), entry.CreatedByUserID)
	assert.Nil(t, entry.GroupID)
	assert.Nil(t, entry.OwnerUserID)
}

func TestNewEntryValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Details)
	}{
		{"пустое название", func(d *Details) { d.Title = "   " }},
		{"конец раньше начала", func(d *Details) { d.EndsAt = d.StartsAt.Add(-time.Hour) }},
		{"конец равен началу", func(d *Details) { d.EndsAt = d.StartsAt }},
		{"офлайн без аудитории", func(d *Details) { d.PhysicalLocation = "" }},
		{"онлайн без ссылки", func(d *Details) {
			d.DeliveryType = models.DeliveryOnline
			d.OnlineLink = ""
		}},
		{"неизвестный формат", func(d *Details) { d.DeliveryType = "hybrid" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDetails()
			tt.mutate(&d)
			_, err := NewEntry(1, models.SourceAdminLesson, 42, d)
			require.Error(t, err)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestNewEntryUnknownSource(t *testing.T) {
	_, err := NewEntry(1, "imported_csv", 42, validDetails())
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestNewEntryOnlineRequiresLinkOnly(t *testing.T) {
	d := validDetails()
	d.DeliveryType = models.DeliveryOnline
	d.PhysicalLocation = ""
	d.OnlineLink = "https://meet.example.com/room"
	_, err := NewEntry(1, models.SourceManualPersonal, 42, d)
	assert.NoError(t, err)
}

// Обновление проходит ту же валидацию, что и создание.
func TestUpdateDetailsValidation(t *testing.T) {
	entry, err := NewEntry(1, models.SourceAdminLesson, 42, validDetails())
	require.NoError(t, err)

	bad := validDetails()
	bad.EndsAt = bad.StartsAt
	var vErr *ValidationError
	assert.ErrorAs(t, UpdateDetails(entry, bad), &vErr)
	// Неудачное обновление не меняет запись.
	assert.True(t, entry.EndsAt.After(entry.StartsAt))

	good := validDetails()
	good.Title = "Линейная алгебра"
	require.NoError(t, UpdateDetails(entry, good))
	assert.Equal(t, "Линейная алгебра", entry.Title)
}

func TestAssignOwner(t *testing.T) {
	entry, err := NewEntry(1, models.SourceManualPersonal, 42, validDetails())
	require.NoError(t, err)
	AssignOwner(entry, 42)
	require.NotNil(t, entry.OwnerUserID)
	assert.Equal(t, uint(42), *entry.OwnerUserID)
}
