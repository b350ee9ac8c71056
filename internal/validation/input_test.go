package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("Editor@Cutflow.io"))
	for _, bad := range []string{"", "no-at", "a@b", "a@@b.com", "a b@x.com", strings.Repeat("a", 65) + "@x.com"} {
		assert.Error(t, ValidateEmail(bad), bad)
	}
}

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("Аня Монтаж"))
	assert.NoError(t, ValidateDisplayName("O'Neil Cuts"))
	assert.Error(t, ValidateDisplayName("x"))
	assert.Error(t, ValidateDisplayName("<script>"))
}

func TestValidateDeadline(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateDeadline(now.Add(time.Hour), now))
	assert.Error(t, ValidateDeadline(now, now))
	assert.Error(t, ValidateDeadline(time.Time{}, now))
}

func TestValidateVideoURL(t *testing.T) {
	assert.NoError(t, ValidateVideoURL("https://www.youtube.com/watch?v=abc"))
	assert.NoError(t, ValidateVideoURL("https://youtu.be/abc"))
	assert.NoError(t, ValidateVideoURL("https://m.youtube.com/shorts/abc"))
	assert.Error(t, ValidateVideoURL("https://example.com/video.mp4"))
	assert.Error(t, ValidateVideoURL("ftp://youtube.com/x"))
	assert.Error(t, ValidateVideoURL("https://notyoutube.com/x"))
}

func TestValidateCoverLetterAndReason(t *testing.T) {
	assert.Error(t, ValidateCoverLetter("   "))
	assert.Error(t, ValidateCoverLetter("коротко"))
	assert.NoError(t, ValidateCoverLetter("Смонтирую ролик за два дня"))
	assert.Error(t, ValidateDisputeReason("плохо"))
	assert.NoError(t, ValidateDisputeReason("Финальная версия не соответствует ТЗ"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Cutflow2026"))
	assert.Error(t, ValidatePassword("Short1"))
	assert.Error(t, ValidatePassword("alllowercase1"))
	assert.Error(t, ValidatePassword("ALLUPPERCASE1"))
	assert.Error(t, ValidatePassword("NoDigitsHere"))
}
