package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ema-backend/internal/calendar/domain"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	propTitles = []string{"Standup", "standup", "Review", "Lunch"}
	propDates  = []string{"2025-02-01", "2025-02-02", "2025-02-03"}
	propTimes  = []string{"", "10:00 AM", "10:00 am", "3pm"}
)

func TestExtractNeverPersistsDuplicates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(rt)
		ctx := context.Background()

		n := rapid.IntRange(1, 4).Draw(rt, "emails")
		responses := make(map[string]string, n)
		identities := make(map[string]bool)
		var emails []*emaildomain.Email
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("m%d", i)
			k := rapid.IntRange(0, 4).Draw(rt, "events")
			var evs []map[string]string
			for j := 0; j < k; j++ {
				ev := map[string]string{
					"title": rapid.SampledFrom(propTitles).Draw(rt, "title"),
					"date":  rapid.SampledFrom(propDates).Draw(rt, "date"),
					"time":  rapid.SampledFrom(propTimes).Draw(rt, "time"),
				}
				evs = append(evs, ev)
				identities[domain.Identity(ev["title"], ev["date"], ev["time"])] = true
			}
			responses[id] = jsonEvents(rt, evs...)
			emails = append(emails, &emaildomain.Email{
				ID:           id,
				Subject:      "subject " + id,
				Body:         "body of email " + id,
				InternalDate: sentOn(10),
			})
		}
		f.uc.SetAIService(&fakeGen{respond: func(prompt string) (string, error) {
			for id, r := range responses {
				if strings.Contains(prompt, "Subject: subject "+id+"\n") {
					return r, nil
				}
			}
			return "[]", nil
		}})

		first, err := f.uc.ExtractCalendarEvents(ctx, "acc", emails, false, registry.None)
		require.NoError(rt, err)
		second, err := f.uc.ExtractCalendarEvents(ctx, "acc", emails, false, registry.None)
		require.NoError(rt, err)

		assert.Len(rt, first, len(identities))
		assert.LessOrEqual(rt, len(second), len(first))

		stored, err := f.repo.FindByAccount("acc")
		require.NoError(rt, err)
		seen := make(map[string]bool, len(stored))
		for _, ev := range stored {
			key := domain.Identity(ev.Title, ev.DateValue(), ev.TimeValue())
			assert.False(rt, seen[key], "duplicate %s", key)
			seen[key] = true
		}
	})
}

func TestSyncConverges(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(rt)
		ctx := context.Background()

		n := rapid.IntRange(0, 6).Draw(rt, "local")
		for i := 0; i < n; i++ {
			date := rapid.SampledFrom(append([]string{""}, propDates...)).Draw(rt, "date")
			ev := f.save(rt, rapid.SampledFrom(propTitles).Draw(rt, "title"), date, fmt.Sprintf("%d:00", i+1))
			if rapid.Bool().Draw(rt, "added") {
				require.NoError(rt, f.repo.SetAdded(ev.ID, true, "stale"))
			}
		}

		m := rapid.IntRange(0, 4).Draw(rt, "remote")
		for i := 0; i < m; i++ {
			day, _ := time.Parse("2006-01-02", rapid.SampledFrom(propDates).Draw(rt, "remoteDate"))
			hour := rapid.IntRange(0, 23).Draw(rt, "hour")
			f.cal.add(rapid.SampledFrom(propTitles).Draw(rt, "remoteTitle"), day.Add(time.Duration(hour)*time.Hour))
		}

		_, err := f.uc.SyncCalendarEvents(ctx, "acc", registry.None)
		require.NoError(rt, err)

		events, err := f.repo.FindByAccount("acc")
		require.NoError(rt, err)
		for _, ev := range events {
			exists, err := f.uc.VerifyEventInCalendar(ctx, "acc", ev.ID)
			require.NoError(rt, err)
			assert.Equal(rt, exists, ev.Added, "%s on %s", ev.Title, ev.DateValue())
		}
	})
}
