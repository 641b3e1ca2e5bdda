package interact

import (
	"testing"

	"waypoint-walk/server/internal/geom"
)

type recorder struct {
	calls []*Active
}

func (r *recorder) onChange(active *Active) {
	r.calls = append(r.calls, active)
}

func twoPointConfig() Config {
	return Config{
		Waypoints: map[string]geom.Vec3{
			"waypointFar":  {X: 2, Y: 0, Z: 0},
			"waypointNear": {X: 0, Y: 0, Z: 1},
		},
		Definitions: []Definition{
			{Point: "waypointFar", Label: "Far", Radius: 3, Trigger: "far"},
			{Point: "waypointNear", Label: "Near", Radius: 3, Trigger: "near"},
		},
	}
}

func TestNearestWinsRegardlessOfOrder(t *testing.T) {
	cfg := twoPointConfig()
	got, ok := Nearest(geom.Vec3{}, cfg)
	if !ok || got.Label != "Near" {
		t.Fatalf("expected Near, got %+v ok=%v", got, ok)
	}
	if got.Distance != 1 {
		t.Fatalf("expected distance 1, got %v", got.Distance)
	}

	cfg.Definitions[0], cfg.Definitions[1] = cfg.Definitions[1], cfg.Definitions[0]
	got, ok = Nearest(geom.Vec3{}, cfg)
	if !ok || got.Label != "Near" {
		t.Fatalf("expected Near after reorder, got %+v", got)
	}
}

func TestNearestUsesPerDefinitionRadius(t *testing.T) {
	cfg := twoPointConfig()
	cfg.Definitions[1].Radius = 0.5
	got, ok := Nearest(geom.Vec3{}, cfg)
	if !ok || got.Label != "Far" {
		t.Fatalf("expected Far once Near is out of its radius, got %+v", got)
	}

	cfg.Definitions[0].Radius = 1.99
	if got, ok := Nearest(geom.Vec3{}, cfg); ok {
		t.Fatalf("expected nothing in range, got %+v", got)
	}

	cfg.Definitions[0].Radius = 2
	if _, ok := Nearest(geom.Vec3{}, cfg); !ok {
		t.Fatalf("distance equal to radius should be in range")
	}
}

func TestNearestTieGoesToFirstRegistered(t *testing.T) {
	cfg := Config{
		Waypoints: map[string]geom.Vec3{
			"waypointA": {X: 1},
			"waypointB": {X: -1},
		},
		Definitions: []Definition{
			{Point: "waypointB", Label: "B", Radius: 2},
			{Point: "waypointA", Label: "A", Radius: 2},
		},
	}
	got, _ := Nearest(geom.Vec3{}, cfg)
	if got.Label != "B" || got.Index != 0 {
		t.Fatalf("expected first registered definition to win the tie, got %+v", got)
	}
}

func TestDanglingPointIsSkipped(t *testing.T) {
	cfg := twoPointConfig()
	cfg.Definitions = append([]Definition{{Point: "waypointMissing", Label: "Ghost", Radius: 100}}, cfg.Definitions...)
	got, ok := Nearest(geom.Vec3{}, cfg)
	if !ok || got.Label != "Near" {
		t.Fatalf("dangling definition must not block others, got %+v", got)
	}
	dangling := Dangling(cfg)
	if len(dangling) != 1 || dangling[0].Label != "Ghost" {
		t.Fatalf("unexpected dangling list %+v", dangling)
	}
}

func TestMetricChangesProximity(t *testing.T) {
	cfg := Config{
		Waypoints:   map[string]geom.Vec3{"waypointUpstairs": {X: 0, Y: 3, Z: 1}},
		Definitions: []Definition{{Point: "waypointUpstairs", Label: "Upstairs", Radius: 2}},
	}
	if _, ok := Nearest(geom.Vec3{}, cfg); ok {
		t.Fatalf("spatial metric should count the floor height")
	}
	cfg.Metric = geom.MetricPlanar
	if _, ok := Nearest(geom.Vec3{}, cfg); !ok {
		t.Fatalf("planar metric should ignore the floor height")
	}
}

func TestSelectorDebounce(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(twoPointConfig(), rec.onChange)

	const frames = 30
	for i := 0; i < frames; i++ {
		active := sel.Evaluate(geom.Vec3{X: 0, Z: float64(i) * 0.001}, false)
		if active == nil || active.Label != "Near" {
			t.Fatalf("frame %d: expected Near, got %+v", i, active)
		}
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected exactly one notification across %d frames, got %d", frames, len(rec.calls))
	}
	if rec.calls[0].Trigger != "near" {
		t.Fatalf("expected trigger token to be reported, got %+v", rec.calls[0])
	}
}

func TestSelectorSuppression(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(twoPointConfig(), rec.onChange)

	sel.Evaluate(geom.Vec3{}, false)
	for i := 0; i < 10; i++ {
		if active := sel.Evaluate(geom.Vec3{}, true); active != nil {
			t.Fatalf("suppressed frame returned %+v", active)
		}
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected enter + one suppression notification, got %d", len(rec.calls))
	}
	if rec.calls[1] != nil {
		t.Fatalf("suppression must report nil, got %+v", rec.calls[1])
	}

	sel.Evaluate(geom.Vec3{}, false)
	if len(rec.calls) != 3 || rec.calls[2] == nil || rec.calls[2].Label != "Near" {
		t.Fatalf("expected Near again after suppression lifts, got %+v", rec.calls)
	}
}

func TestSelectorSuppressedFromStartNeverNotifies(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(twoPointConfig(), rec.onChange)
	for i := 0; i < 5; i++ {
		sel.Evaluate(geom.Vec3{}, true)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("expected no notifications, got %d", len(rec.calls))
	}
}

func TestSelectorLeavingRangeNotifiesOnce(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(twoPointConfig(), rec.onChange)
	sel.Evaluate(geom.Vec3{}, false)
	for i := 0; i < 5; i++ {
		sel.Evaluate(geom.Vec3{X: 50, Z: 50}, false)
	}
	if len(rec.calls) != 2 || rec.calls[1] != nil {
		t.Fatalf("expected one nil notification on leaving range, got %+v", rec.calls)
	}
	if sel.Current() != nil {
		t.Fatalf("expected no current interaction")
	}
}

func TestSelectorSameLabelDifferentPointNotifies(t *testing.T) {
	cfg := Config{
		Waypoints: map[string]geom.Vec3{
			"waypointInfoAbout":    {X: 0},
			"waypointInfoProjects": {X: 10},
		},
		Definitions: []Definition{
			{Point: "waypointInfoAbout", Label: "Read Sign", Radius: 2, Trigger: "about"},
			{Point: "waypointInfoProjects", Label: "Read Sign", Radius: 2, Trigger: "projects"},
		},
	}
	rec := &recorder{}
	sel := NewSelector(cfg, rec.onChange)
	sel.Evaluate(geom.Vec3{X: 0.5}, false)
	sel.Evaluate(geom.Vec3{X: 9.5}, false)
	if len(rec.calls) != 2 {
		t.Fatalf("expected a notification per sign, got %d", len(rec.calls))
	}
	if rec.calls[1].Trigger != "projects" {
		t.Fatalf("expected second sign token, got %+v", rec.calls[1])
	}
}

func TestSelectorReconfigureKeepsWinner(t *testing.T) {
	rec := &recorder{}
	cfg := twoPointConfig()
	sel := NewSelector(cfg, rec.onChange)
	sel.Evaluate(geom.Vec3{}, false)

	cfg.Definitions[1].Trigger = "near-v2"
	sel.Reconfigure(cfg)
	active := sel.Evaluate(geom.Vec3{}, false)
	if len(rec.calls) != 1 {
		t.Fatalf("unchanged winner should not re-notify, got %d", len(rec.calls))
	}
	if active.Trigger != "near-v2" {
		t.Fatalf("expected refreshed trigger token, got %+v", active.Trigger)
	}
}

func TestNilSelector(t *testing.T) {
	var sel *Selector
	if sel.Evaluate(geom.Vec3{}, false) != nil || sel.Current() != nil {
		t.Fatalf("nil selector must be inert")
	}
	sel.Clear()
	sel.Reconfigure(Config{})
}

func TestSelectorClearNotifiesOnce(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(twoPointConfig(), rec.onChange)
	sel.Clear()
	if len(rec.calls) != 0 {
		t.Fatalf("clearing an idle selector should not notify, got %d calls", len(rec.calls))
	}

	sel.Evaluate(geom.Vec3{}, false)
	sel.Clear()
	sel.Clear()
	if len(rec.calls) != 2 || rec.calls[1] != nil {
		t.Fatalf("expected activate then a single nil, got %+v", rec.calls)
	}
	if sel.Current() != nil {
		t.Fatalf("expected no current interaction after clear")
	}

	sel.Reconfigure(Config{})
	if sel.Evaluate(geom.Vec3{}, false) != nil || len(rec.calls) != 2 {
		t.Fatalf("empty configuration should stay silent, got %+v", rec.calls)
	}
}
