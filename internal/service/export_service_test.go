package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

type signerStub struct {
	owner string
	path  string
	err   error
}

func (s signerStub) Generate(ownerID, relPath string) (string, time.Time, error) {
	return "token", time.Now().Add(time.Hour), nil
}

func (s signerStub) Parse(string) (string, string, time.Time, error) {
	return s.owner, s.path, time.Now().Add(time.Hour), s.err
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(store, signer, ExportConfig{APIPrefix: "/api/v1/"}, zap.NewNop()), store
}

func slotAt(day, period int, kind timetable.AssignmentKind, subject, teacher string) models.TimetableSlot {
	slot := models.TimetableSlot{ClassID: "10-a", Week: 1, DayOfWeek: day, Period: period, Kind: string(kind)}
	slot.SubjectID = optional(subject)
	slot.TeacherID = optional(teacher)
	return slot
}

func sampleDocument() TimetableDocument {
	ceremony := slotAt(1, 1, timetable.KindFixed, "", "hr-a")
	ceremony.SpecialType = optional(string(timetable.SpecialFlagCeremony))
	meeting := slotAt(2, 3, timetable.KindFixed, "", "hr-a")
	meeting.SpecialType = optional(string(timetable.SpecialClassMeeting))
	first := slotAt(1, 2, timetable.KindRegular, "sub-math", "t-math")
	first.DoubleHalf = optional(string(timetable.DoubleFirst))

	return TimetableDocument{
		RunID:     "run-1",
		Version:   3,
		Grade:     "10",
		ClassID:   "10-a",
		ClassName: "Kelas 10A",
		Week:      2,
		Calendar:  timetable.Calendar{LunchBreakAfter: 2},
		Slots: []models.TimetableSlot{
			meeting,
			ceremony,
			first,
			slotAt(1, 3, timetable.KindEmpty, "", ""),
			slotAt(2, 1, timetable.KindRegular, "sub-eng", "t-eng"),
			slotAt(2, 2, timetable.KindRegular, "sub-unknown", ""),
		},
		Subjects: map[string]string{"sub-math": "Matematika", "sub-eng": "Bahasa Inggris"},
		Teachers: map[string]string{"hr-a": "Bu Sari", "t-math": "Pak Budi"},
	}
}

func TestBuildDatasetLaysOutPeriodsByDay(t *testing.T) {
	data := BuildDataset(sampleDocument())

	assert.Equal(t, []string{"Period", "Monday", "Tuesday"}, data.Headers)
	assert.Equal(t, "Timetable Kelas 10A", data.Title)
	assert.Equal(t, "Grade 10, week 2, version 3", data.Subtitle)
	require.Len(t, data.Rows, 4)

	assert.Equal(t, "Flag ceremony - Bu Sari", data.Rows[0]["Monday"])
	assert.Equal(t, "Bahasa Inggris - t-eng", data.Rows[0]["Tuesday"])
	assert.Equal(t, "Matematika (double) - Pak Budi", data.Rows[1]["Monday"])
	assert.Equal(t, "sub-unknown", data.Rows[1]["Tuesday"])
	assert.Equal(t, map[string]string{"Period": "Break", "Monday": "Lunch", "Tuesday": "Lunch"}, data.Rows[2])
	assert.Equal(t, "3", data.Rows[3]["Period"])
	assert.Equal(t, "Self study", data.Rows[3]["Monday"])
	assert.Equal(t, "Class meeting - Bu Sari", data.Rows[3]["Tuesday"])
}

func TestExportServiceRenderLinkAndDownload(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	file, err := svc.Render(sampleDocument(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "Kelas_10A_v3_w02.csv", file.Filename)
	assert.Equal(t, "run-1/Kelas_10A_v3_w02.csv", file.RelativePath)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, string(file.Data), "Matematika (double) - Pak Budi")

	link, err := svc.Link("run-1", file.RelativePath, file.Format)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/timetables/exports/"), link.URL)
	assert.Equal(t, "csv", link.Format)

	downloaded, err := svc.Download(link.Token)
	require.NoError(t, err)
	assert.Equal(t, file.Data, downloaded.Data)
	assert.Equal(t, file.Filename, downloaded.Filename)

	require.NoError(t, svc.DeleteRun("run-1"))
	_, err = svc.Download(link.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	file, err := svc.Render(sampleDocument(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Render(sampleDocument(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceDownloadErrors(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	cases := map[string]struct {
		signer signerStub
		code   string
	}{
		"expired":      {signer: signerStub{err: storage.ErrTokenExpired}, code: appErrors.ErrExpired.Code},
		"tampered":     {signer: signerStub{err: storage.ErrInvalidToken}, code: appErrors.ErrForbidden.Code},
		"foreign path": {signer: signerStub{owner: "run-1", path: "run-2/file.csv"}, code: appErrors.ErrForbidden.Code},
		"missing file": {signer: signerStub{owner: "run-1", path: "run-1/gone.csv"}, code: appErrors.ErrNotFound.Code},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewExportService(store, tc.signer, ExportConfig{}, nil)
			_, err := svc.Download("anything")
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "class", sanitizeFilename(""))
	assert.Equal(t, "XII_IPA-1", sanitizeFilename("XII IPA/1"))
	assert.Len(t, sanitizeFilename(strings.Repeat("a", 150)), 100)
}
