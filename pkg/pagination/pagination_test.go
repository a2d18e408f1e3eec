package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 6, 1, 12, 30, 0, 123, time.UTC), ID: uuid.New()}

	got, err := Decode(c.Encode())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, c.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, c.ID, got.ID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	got, err := Decode("  ")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = Decode("not base64!")
	require.Error(t, err)

	_, err = Decode(Cursor{}.Encode()[:4])
	require.Error(t, err)
}

func TestClamp(t *testing.T) {
	require.Equal(t, DefaultLimit, Clamp(0))
	require.Equal(t, MaxLimit, Clamp(MaxLimit+50))
	require.Equal(t, 7, Clamp(7))
}

func TestTrim(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{base.Add(3), uuid.New()}, {base.Add(2), uuid.New()}, {base.Add(1), uuid.New()}}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 2, key)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	require.Equal(t, rows[1].id, next.ID)

	page, next = Trim(rows, 3, key)
	require.Len(t, page, 3)
	require.Nil(t, next)
}
