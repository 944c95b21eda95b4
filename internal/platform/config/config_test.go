package config

import (
	"testing"
	"time"

	kit "mailsweep/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	root := New()
	core := root.Prefix("CORE_")
	if got := core.key("TABLE"); got != "CORE_TABLE" {
		t.Fatalf("key() = %q, want %q", got, "CORE_TABLE")
	}
	nested := core.Prefix("VERIFIER_")
	if got := nested.key("BATCH_CAP"); got != "CORE_VERIFIER_BATCH_CAP" {
		t.Fatalf("nested key() = %q, want %q", got, "CORE_VERIFIER_BATCH_CAP")
	}
}

func TestLayeredPrecedence(t *testing.T) {
	t.Setenv("L_TABLE", "from-env")
	flags := Map{"L_TABLE": "from-flag"}
	file := Map{"L_TABLE": "from-file", "L_ONLY_FILE": "file"}

	c := New(flags, Env(), file).Prefix("L_")
	if got := c.MayString("TABLE", "def"); got != "from-flag" {
		t.Fatalf("flag should win, got %q", got)
	}

	c = New(Map{}, Env(), file).Prefix("L_")
	if got := c.MayString("TABLE", "def"); got != "from-env" {
		t.Fatalf("env should beat file, got %q", got)
	}
	if got := c.MayString("ONLY_FILE", "def"); got != "file" {
		t.Fatalf("file fallback = %q, want file", got)
	}
	if c.Has("MISSING") {
		t.Fatalf("Has(MISSING) = true")
	}
}

func TestBlankValueFallsThrough(t *testing.T) {
	c := New(Map{"B_K": "   "}, Map{"B_K": "second"}).Prefix("B_")
	if got := c.MayString("K", "def"); got != "second" {
		t.Fatalf("blank layer should fall through, got %q", got)
	}
}

func TestMustString(t *testing.T) {
	c := New().Prefix("APP_")
	t.Setenv("APP_NAME", "  mailsweep ")
	if got := c.MustString("NAME"); got != "mailsweep" {
		t.Fatalf("MustString = %q, want %q", got, "mailsweep")
	}
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
}

func TestMustInt(t *testing.T) {
	c := New().Prefix("SVC_")
	t.Setenv("SVC_WORKERS", "  8 ")
	if got := c.MustInt("WORKERS"); got != 8 {
		t.Fatalf("MustInt = %d, want %d", got, 8)
	}
	kit.MustPanic(t, func() { _ = c.MustInt("MISSING") })
	t.Setenv("SVC_BAD", "x")
	kit.MustPanic(t, func() { _ = c.MustInt("BAD") })
}

func TestRequire(t *testing.T) {
	c := New().Prefix("REQ_")
	t.Setenv("REQ_A", "x")
	t.Setenv("REQ_B", "y")
	c.Require("A", "B")
	kit.MustPanic(t, func() { c.Require("A", "C") })

	t.Setenv("REQ_WS", "   ")
	kit.MustPanic(t, func() { c.Require("WS") })
}

func TestMayInt(t *testing.T) {
	c := New().Prefix("I_")
	if got := c.MayInt("MISSING", 9); got != 9 {
		t.Fatalf("MayInt default = %d, want %d", got, 9)
	}
	t.Setenv("I_OK", " 7 ")
	if got := c.MayInt("OK", 0); got != 7 {
		t.Fatalf("MayInt ok = %d, want %d", got, 7)
	}
	t.Setenv("I_BAD", "x")
	if got := c.MayInt("BAD", 3); got != 3 {
		t.Fatalf("MayInt bad -> default = %d, want %d", got, 3)
	}
}

func TestMayBool(t *testing.T) {
	c := New().Prefix("B_")
	if got := c.MayBool("MISSING", true); got != true {
		t.Fatalf("MayBool default true expected")
	}
	t.Setenv("B_T", "true")
	if got := c.MayBool("T", false); got != true {
		t.Fatalf("MayBool true expected")
	}
	t.Setenv("B_BAD", "nope")
	if got := c.MayBool("BAD", false); got != false {
		t.Fatalf("MayBool bad -> default false expected")
	}
}

func TestMayDuration(t *testing.T) {
	c := New().Prefix("DUR_")
	cases := []struct {
		name string
		env  string
		def  time.Duration
		want time.Duration
	}{
		{"missing", "", 5 * time.Second, 5 * time.Second},
		{"go duration", "150ms", time.Second, 150 * time.Millisecond},
		{"bare millis", "3000", time.Second, 3 * time.Second},
		{"garbage", "nope", time.Minute, time.Minute},
		{"negative millis", "-5", time.Minute, time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DUR_V", tc.env)
			if got := c.MayDuration("V", tc.def); got != tc.want {
				t.Fatalf("MayDuration(%q) = %v, want %v", tc.env, got, tc.want)
			}
		})
	}
}

func TestMayCSV(t *testing.T) {
	c := New().Prefix("CSV_")
	def := []string{"a", "b"}
	if got := c.MayCSV("MISS", def); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("MayCSV default mismatch: %#v", got)
	}
	t.Setenv("CSV_VALS", " .gov, @fsb , ,icloud.com ,, ")
	got := c.MayCSV("VALS", nil)
	want := []string{".gov", "@fsb", "icloud.com"}
	if len(got) != len(want) {
		t.Fatalf("MayCSV len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MayCSV[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	t.Setenv("CSV_EMPTY", " , ,  ,")
	if got := c.MayCSV("EMPTY", []string{"fallback"}); len(got) != 1 || got[0] != "fallback" {
		t.Fatalf("MayCSV all-empty -> default mismatch: %#v", got)
	}
}

func TestMayRegexp(t *testing.T) {
	c := New().Prefix("RE_")
	re := c.MayRegexp("MISSING", "^[c-j]")
	if !re.MatchString("carol@example.com") || re.MatchString("zed@example.com") {
		t.Fatalf("default regexp did not behave")
	}
	t.Setenv("RE_BAD", "([")
	kit.MustPanic(t, func() { _ = c.MayRegexp("BAD", ".*") })
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("E_")
	if got := c.MayEnum("MISS", "json", "json", "console"); got != "json" {
		t.Fatalf("MayEnum default = %q, want %q", got, "json")
	}
	t.Setenv("E_FMT", "Console")
	if got := c.MayEnum("FMT", "json", "json", "console"); got != "Console" {
		t.Fatalf("MayEnum allowed value = %q, want %q", got, "Console")
	}
	t.Setenv("E_BAD", "xml")
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "json", "json", "console") })

	if got := c.MayEnum("MISSING", "", "json", "console"); got != "" {
		t.Fatalf("MayEnum with empty def and missing env = %q, want empty string", got)
	}
}
