package ring

import (
	"sort"

	"assassinserver/internal/gameerr"
	"assassinserver/models"
)

// Trace は生存参加者のターゲットを辿り、最も早い参加者から始まる巡回を返す。
// 生存者全員を含むちょうど1つの巡回でなければ整合性エラー。自己ターゲットは残り1人の時のみ許す。
// Dead の行は無視し、参加者がいなければ空のリングを返す。
func Trace(all []models.Participant) ([]uint, error) {
	living := make([]models.Participant, 0, len(all))
	for _, p := range all {
		if p.LifeStatus.InRing() {
			living = append(living, p)
		}
	}
	if len(living) == 0 {
		return nil, nil
	}
	sort.Slice(living, func(i, j int) bool { return living[i].ID < living[j].ID })

	targets := make(map[uint]uint, len(living))
	for _, p := range living {
		if _, dup := targets[p.UserID]; dup {
			return nil, gameerr.Integrity("user %d appears twice", p.UserID)
		}
		targets[p.UserID] = p.TargetUserID
	}

	start := living[0].UserID
	if len(living) == 1 {
		if targets[start] != start {
			return nil, gameerr.Integrity("sole survivor %d targets %d", start, targets[start])
		}
		return []uint{start}, nil
	}

	order := make([]uint, 0, len(living))
	seen := make(map[uint]bool, len(living))
	for cur := start; !seen[cur]; {
		seen[cur] = true
		order = append(order, cur)

		next := targets[cur]
		if next == cur {
			return nil, gameerr.Integrity("user %d targets itself", cur)
		}
		if _, ok := targets[next]; !ok {
			return nil, gameerr.Integrity("user %d targets dead or unknown user %d", cur, next)
		}
		if seen[next] && next != start {
			return nil, gameerr.Integrity("ring does not close at %d", start)
		}
		cur = next
	}
	if len(order) != len(living) {
		return nil, gameerr.Integrity("ring covers %d of %d living participants", len(order), len(living))
	}
	return order, nil
}
