package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func stateWith(mvs ...domain.Movement) *domain.AppState {
	s := domain.NewDefaultState()
	s.Movements = mvs
	return s
}

func in(id string, date time.Time, amount float64) domain.Movement {
	return domain.Movement{ID: id, Date: date, Amount: amount, Direction: domain.DirectionIn}
}

func out(id string, date time.Time, amount float64) domain.Movement {
	return domain.Movement{ID: id, Date: date, Amount: amount, Direction: domain.DirectionOut}
}

func TestMonthlyTotals(t *testing.T) {
	s := stateWith(
		in("a", day(2026, 3, 1), 100.10),
		in("b", day(2026, 3, 31), 0.20),
		out("c", day(2026, 3, 15), 40),
		in("d", day(2026, 4, 1), 999),
		out("e", day(2025, 3, 15), 999),
	)

	got := MonthlyTotals(s, day(2026, 3, 20))
	assert.Equal(t, Totals{In: 100.3, Out: 40}, got)
	assert.Equal(t, 60.3, got.Net())
}

func TestMonthlyTotals_UsesLocation(t *testing.T) {
	rome := time.FixedZone("CET", 3600)
	// 23:30 UTC on March 31 is already April 1 in Rome.
	s := stateWith(in("a", time.Date(2026, 3, 31, 23, 30, 0, 0, time.UTC), 10))

	assert.Equal(t, 10.0, MonthlyTotals(s, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)).In)
	assert.Equal(t, 0.0, MonthlyTotals(s, time.Date(2026, 3, 15, 0, 0, 0, 0, rome)).In)
	assert.Equal(t, 10.0, MonthlyTotals(s, time.Date(2026, 4, 15, 0, 0, 0, 0, rome)).In)
}

func TestYearTotals(t *testing.T) {
	s := stateWith(
		in("a", day(2026, 1, 5), 10),
		out("b", day(2026, 12, 5), 4),
		in("c", day(2025, 12, 31), 100),
	)
	assert.Equal(t, Totals{In: 10, Out: 4}, YearTotals(s, 2026, time.UTC))
}

func TestMonthlySeries(t *testing.T) {
	s := stateWith(
		in("a", day(2025, 12, 10), 5),
		in("b", day(2026, 2, 10), 7),
		out("c", day(2026, 2, 11), 2),
	)

	got := MonthlySeries(s, day(2026, 2, 20), 3)
	require.Len(t, got, 3)
	assert.Equal(t, MonthPoint{Year: 2025, Month: time.December, Label: "dic", In: 5}, got[0])
	assert.Equal(t, MonthPoint{Year: 2026, Month: time.January, Label: "gen"}, got[1])
	assert.Equal(t, MonthPoint{Year: 2026, Month: time.February, Label: "feb", In: 7, Out: 2}, got[2])

	assert.Empty(t, MonthlySeries(s, day(2026, 2, 20), 0))
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "gen", MonthLabel(time.January))
	assert.Equal(t, "dic", MonthLabel(time.December))
	assert.Equal(t, "", MonthLabel(13))
}

func TestBalance(t *testing.T) {
	s := stateWith(in("a", day(2026, 1, 1), 0.1), in("b", day(2026, 1, 2), 0.2), out("c", day(2026, 1, 3), 0.05))
	s.OpeningBalance = 1000

	assert.Equal(t, 1000.25, Balance(s))
}

func TestRecent(t *testing.T) {
	s := stateWith(in("old", day(2026, 1, 1), 1), in("new", day(2026, 3, 1), 1), in("mid", day(2026, 2, 1), 1))

	got := Recent(s, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "old", s.Movements[0].ID)

	assert.Len(t, Recent(s, 0), 3)
}

func TestAddMovement(t *testing.T) {
	s := domain.NewDefaultState()
	clock := testutil.NewClock(time.Time{})

	mv, err := AddMovement(s, testutil.NewSequenceIDs("mv"), clock, MovementInput{
		Description:      " Affitto ",
		JobCode:          "sede",
		Amount:           450.555,
		Direction:        domain.DirectionOut,
		CounterpartyKind: domain.CounterpartyOther,
	})
	require.NoError(t, err)

	assert.Equal(t, "mv-1", mv.ID)
	assert.Equal(t, "Affitto", mv.Description)
	assert.Equal(t, "SEDE", mv.JobCode)
	assert.Equal(t, 450.56, mv.Amount)
	assert.Equal(t, testutil.DefaultEpoch, mv.Date)
	assert.Nil(t, mv.Source)
	assert.Len(t, s.Movements, 1)
}

func TestAddMovement_Defaults(t *testing.T) {
	s := domain.NewDefaultState()
	mv, err := AddMovement(s, testutil.NewSequenceIDs(""), testutil.NewClock(time.Time{}), MovementInput{Description: "x", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionIn, mv.Direction)
	assert.Equal(t, domain.CounterpartyClient, mv.CounterpartyKind)
}

func TestAddMovement_Validation(t *testing.T) {
	s := domain.NewDefaultState()
	ids, clock := testutil.NewSequenceIDs(""), testutil.NewClock(time.Time{})

	_, err := AddMovement(s, ids, clock, MovementInput{Amount: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = AddMovement(s, ids, clock, MovementInput{Description: "x", Amount: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, s.Movements)
}

func TestDeleteManual(t *testing.T) {
	sourced := in("s", day(2026, 1, 1), 5)
	sourced.Source = &domain.SourceRef{Kind: domain.SourceJobPayment, ID: "p1"}
	s := stateWith(in("m", day(2026, 1, 1), 5), sourced)

	require.NoError(t, DeleteManual(s, "m"))
	assert.ErrorIs(t, DeleteManual(s, "s"), domain.ErrInvalidInput)
	assert.ErrorIs(t, DeleteManual(s, "m"), domain.ErrNotFound)
	require.Len(t, s.Movements, 1)
	assert.Equal(t, "s", s.Movements[0].ID)
}

func TestRemoveBySource(t *testing.T) {
	pay := in("a", day(2026, 1, 1), 5)
	pay.Source = &domain.SourceRef{Kind: domain.SourceJobPayment, ID: "p1"}
	buy := out("b", day(2026, 1, 1), 5)
	buy.Source = &domain.SourceRef{Kind: domain.SourcePurchaseLine, ID: "p1"}
	s := stateWith(pay, buy, in("c", day(2026, 1, 1), 1))

	assert.Equal(t, 0, RemoveBySource(s, domain.SourceJobPayment, nil))
	assert.Equal(t, 1, RemoveBySource(s, domain.SourceJobPayment, map[string]bool{"p1": true}))
	require.Len(t, s.Movements, 2)
	assert.Equal(t, "b", s.Movements[0].ID)
	assert.Equal(t, "c", s.Movements[1].ID)
}
