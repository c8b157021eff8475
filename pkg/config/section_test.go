package config

import "testing"

func testSection(t *testing.T, body string) *Section {
	t.Helper()
	cfg, err := LoadString("[test]\n" + body)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	sec, err := cfg.GetSection("test")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	return sec
}

func TestGetString(t *testing.T) {
	sec := testSection(t, "name: toolhead\n")

	if v, err := sec.Get("name"); err != nil || v != "toolhead" {
		t.Errorf("Get(name) = %q, %v", v, err)
	}
	if v, err := sec.Get("missing", "fallback"); err != nil || v != "fallback" {
		t.Errorf("Get with fallback = %q, %v", v, err)
	}
	if _, err := sec.Get("missing"); err == nil {
		t.Error("expected error for missing option without fallback")
	}
}

func TestGetCaseInsensitive(t *testing.T) {
	sec := testSection(t, "Pin_E: gpio17\n")
	if v, err := sec.Get("pin_e"); err != nil || v != "gpio17" {
		t.Errorf("Get(pin_e) = %q, %v", v, err)
	}
}

func TestGetInt(t *testing.T) {
	sec := testSection(t, "count: 4\nbad: abc\n")

	if v, err := sec.GetInt("count"); err != nil || v != 4 {
		t.Errorf("GetInt(count) = %d, %v", v, err)
	}
	if v, err := sec.GetInt("missing", 7); err != nil || v != 7 {
		t.Errorf("GetInt with fallback = %d, %v", v, err)
	}
	if _, err := sec.GetInt("bad"); err == nil {
		t.Error("expected error for non-integer value")
	}
}

func TestGetFloat(t *testing.T) {
	sec := testSection(t, "delay: 0.25\nbad: x\n")

	if v, err := sec.GetFloat("delay"); err != nil || v != 0.25 {
		t.Errorf("GetFloat(delay) = %f, %v", v, err)
	}
	if _, err := sec.GetFloat("bad"); err == nil {
		t.Error("expected error for non-float value")
	}
}

func TestGetFloatMin(t *testing.T) {
	sec := testSection(t, "delay: -0.5\n")

	if _, err := sec.GetFloatMin("delay", 0.0); err == nil {
		t.Error("expected range error for negative delay")
	}
	if v, err := sec.GetFloatMin("missing", 0.0, 0.1); err != nil || v != 0.1 {
		t.Errorf("GetFloatMin fallback = %f, %v", v, err)
	}
}

func TestGetBool(t *testing.T) {
	sec := testSection(t, "a: 1\nb: false\nc: Yes\nd: off\nbad: maybe\n")

	cases := []struct {
		option string
		want   bool
	}{{"a", true}, {"b", false}, {"c", true}, {"d", false}}
	for _, tt := range cases {
		if v, err := sec.GetBool(tt.option); err != nil || v != tt.want {
			t.Errorf("GetBool(%s) = %v, %v, want %v", tt.option, v, err, tt.want)
		}
	}
	if _, err := sec.GetBool("bad"); err == nil {
		t.Error("expected error for invalid boolean")
	}
	if v, err := sec.GetBool("missing", true); err != nil || !v {
		t.Errorf("GetBool fallback = %v, %v", v, err)
	}
}

func TestGetPrefixOptions(t *testing.T) {
	sec := testSection(t, "pin_e: gpio17\npin_t1: gpio23\npin_t0: gpio22\nverbose: 1\n")

	opts := sec.GetPrefixOptions("pin_")
	want := []string{"pin_e", "pin_t0", "pin_t1"}
	if len(opts) != len(want) {
		t.Fatalf("GetPrefixOptions = %v, want %v", opts, want)
	}
	for i := range want {
		if opts[i] != want[i] {
			t.Errorf("option[%d] = %q, want %q", i, opts[i], want[i])
		}
	}
}

func TestSectionUnusedOptions(t *testing.T) {
	sec := testSection(t, "a: 1\nb: 2\n")
	sec.Get("a")

	unused := sec.GetUnusedOptions()
	if len(unused) != 1 || unused[0] != "b" {
		t.Errorf("unused = %v, want [b]", unused)
	}
}
