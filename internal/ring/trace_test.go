package ring

import (
	"testing"

	"assassinserver/internal/gameerr"
	"assassinserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func row(id, user, target uint, status models.LifeStatus) models.Participant {
	return models.Participant{Model: gorm.Model{ID: id}, UserID: user, TargetUserID: target, LifeStatus: status}
}

func TestTrace(t *testing.T) {
	alive, pending, dead := models.LifeAlive, models.LifePending, models.LifeDead

	tests := []struct {
		name    string
		rows    []models.Participant
		want    []uint
		wantErr bool
	}{
		{name: "empty", rows: nil, want: nil},
		{name: "self loop", rows: []models.Participant{row(1, 7, 7, alive)}, want: []uint{7}},
		{name: "sole survivor not self", rows: []models.Participant{row(1, 7, 8, alive), row(2, 8, 7, dead)}, wantErr: true},
		{
			name: "three ring starts at earliest joiner",
			rows: []models.Participant{row(3, 30, 10, alive), row(1, 10, 20, pending), row(2, 20, 30, alive)},
			want: []uint{10, 20, 30},
		},
		{
			name: "dead rows ignored",
			rows: []models.Participant{row(1, 10, 30, alive), row(2, 20, 30, dead), row(3, 30, 10, alive)},
			want: []uint{10, 30},
		},
		{
			name:    "two sub cycles",
			rows:    []models.Participant{row(1, 1, 2, alive), row(2, 2, 1, alive), row(3, 3, 4, alive), row(4, 4, 3, alive)},
			wantErr: true,
		},
		{
			name:    "points at dead",
			rows:    []models.Participant{row(1, 1, 2, alive), row(2, 2, 3, alive), row(3, 3, 1, dead)},
			wantErr: true,
		},
		{
			name:    "self target in larger ring",
			rows:    []models.Participant{row(1, 1, 1, alive), row(2, 2, 1, alive)},
			wantErr: true,
		},
		{
			name:    "lollipop",
			rows:    []models.Participant{row(1, 1, 2, alive), row(2, 2, 3, alive), row(3, 3, 2, alive)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Trace(tt.rows)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, gameerr.KindIntegrity, gameerr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
