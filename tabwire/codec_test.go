package tabwire

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Fixed encodings
// ============================================================

func TestSerialize_Fixtures(t *testing.T) {
	shared := List(Int(1))
	empty := NewTable()
	self := NewTable()
	self.MustSet(Str("self"), Tab(self))

	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"zero", Int(0), "1:0"},
		{"nine", Int(9), "1:9"},
		{"ten", Int(10), "1:n10:"},
		{"true", Bool(true), "1:t"},
		{"false", Bool(false), "1:f"},
		{"nil", Nil(), "1:z"},
		{"empty table", Tab(NewTable()), "1:e"},
		{"forty five", Int(45), "1:n45:"},
		{"negative", Int(-1), "1:n-1:"},
		{"half", Num(0.5), "1:n0.5:"},
		{"negative zero", Num(negZero()), "1:n-0:"},
		{"third", Num(1.0 / 3), "1:d6004799503160661:-54:"},
		{"string", Str("FooBar"), "1:sFooBar:"},
		{"empty string", Str(""), "1:S"},
		{"colon", Str("a:b"), "1:~a~zb:"},
		{"space", Str("x y"), "1:~x~`y:"},
		{"pipe", Str("|"), "1:~~y:"},
		{"tilde", Str("~"), "1:~~~:"},
		{"mixed table", Tab(Map(
			Entry{Key: Str("a"), Value: Int(5)},
			Entry{Key: Int(1), Value: Str("b")},
		)), "1:Tsa:51sb:z"},
		{"string ref", Tab(List(Str("hello"), Str("hello"))), "1:T1shello:2<0:z"},
		{"short string repeated", Tab(List(Str("abcd"), Str("abcd"))), "1:T1sabcd:2sabcd:z"},
		{"escaped length decides", Tab(List(Str("ab:c"), Str("ab:c"))), "1:T1~ab~zc:2<0:z"},
		{"shared table", Tab(List(Tab(shared), Tab(shared))), "1:T1T11z2r1:z"},
		{"shared empty table", Tab(List(Tab(empty), Tab(empty))), "1:T1e2r1:z"},
		{"self reference", Tab(self), "1:Tsself:r0:z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Serialize(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := Unserialize(got)
			require.NoError(t, err)
			assert.True(t, Equal(tt.value, back), "round trip: got %s, want %s", back, tt.value)
		})
	}
}

func TestSerialize_MixedTableAnyOrder(t *testing.T) {
	// Either entry order is a valid encoding of {a=5, "b"}.
	for _, in := range []string{"1:Tsa:51sb:z", "1:T1sb:sa:5z"} {
		v, err := Unserialize(in)
		require.NoError(t, err, in)
		tab := v.AsTable()
		require.NotNil(t, tab)
		assert.Equal(t, 2, tab.Len())
		assert.Equal(t, Str("b"), tab.Get(Int(1)))
		assert.Equal(t, Int(5), tab.Get(Str("a")))
	}
}

// ============================================================
// Version field
// ============================================================

func TestUnserialize_VersionField(t *testing.T) {
	tests := []struct {
		input string
		want  Value
	}{
		{"1:0", Int(0)},
		{"1:n0:", Int(0)},
		{"1:7", Int(7)},
		{"n1:5", Int(5)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Unserialize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerialize_VersionNeverUsesDigitFastPath(t *testing.T) {
	out, err := Serialize(Int(1))
	require.NoError(t, err)
	assert.Equal(t, "1:1", out)
	assert.True(t, strings.HasPrefix(out, "1:"))
}

// ============================================================
// Errors
// ============================================================

func TestUnserialize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason FormatReason
	}{
		{"empty", "", ReasonEmptyInput},
		{"trailing garbage", "1:zz", ReasonTrailingGarbage},
		{"unknown tag", "1:w", ReasonInvalidCode},
		{"missing terminator", "1:n48", ReasonUnterminated},
		{"malformed table body", "1:T0102", ReasonUnterminated},
		{"wrong version", "2:z", ReasonBadVersion},
		{"version not a number", "x:z", ReasonBadVersion},
		{"version with leading zero", "01:t", ReasonBadVersion},
		{"version with sign", "+1:t", ReasonBadVersion},
		{"tagged version with leading zero", "n01:t", ReasonBadVersion},
		{"header only", "1", ReasonUnterminated},
		{"no value", "1:", ReasonUnterminated},
		{"table ref out of range", "1:r0:", ReasonRefOutOfBounds},
		{"table ref past count", "1:T1er2:z", ReasonRefOutOfBounds},
		{"string ref out of range", "1:<0:", ReasonRefOutOfBounds},
		{"short string not referenced", "1:T1sabcd:2<0:z", ReasonRefOutOfBounds},
		{"bad escape", "1:~a~q:", ReasonBadEscape},
		{"dangling escape", "1:~a~:", ReasonBadEscape},
		{"bad number", "1:nabc:", ReasonBadNumber},
		{"infinite number", "1:ninf:", ReasonBadNumber},
		{"bad mantissa", "1:dx:1:", ReasonBadNumber},
		{"exponent overflow", "1:d1:5000:", ReasonBadNumber},
		{"unterminated string", "1:sabc", ReasonUnterminated},
		{"unterminated table", "1:T1t", ReasonUnterminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Unserialize(tt.input)
			require.Error(t, err)
			assert.True(t, v.IsNil(), "no partial value on failure")
			assert.True(t, errors.Is(err, ErrFormat))
			assert.True(t, strings.HasPrefix(err.Error(), "unserialize: "), err.Error())

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.reason, fe.Reason, err.Error())
		})
	}
}

func TestUnserializeValue_WrongInputKind(t *testing.T) {
	c := New()
	for _, v := range []Value{Int(5), Nil(), Bool(true), Tab(NewTable())} {
		_, err := c.UnserializeValue(v)
		var fe *FormatError
		require.True(t, errors.As(err, &fe), "input %s", v)
		assert.Equal(t, ReasonWrongInputKind, fe.Reason)
	}

	got, err := c.UnserializeValue(Str("1:t"))
	require.NoError(t, err)
	assert.Equal(t, Bool(true), got)
}

func TestSerialize_Unsupported(t *testing.T) {
	inner := List(Int(1), Tab(Map(Entry{Key: Str("fn"), Value: Opaque(func() {})})))

	tests := []struct {
		name  string
		value Value
		path  string
	}{
		{"opaque", Opaque(make(chan int)), "$"},
		{"nested opaque", Tab(inner), "$[2].fn"},
		{"opaque key", Tab(Map(Entry{Key: Opaque(struct{}{}), Value: Int(1)})), "$[opaque]"},
		{"nan", Num(nan()), "$"},
		{"infinity", Num(inf()), "$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Serialize(tt.value)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.True(t, errors.Is(err, ErrUnsupported))
			assert.True(t, strings.HasPrefix(err.Error(), "serialize: "), err.Error())

			var ue *UnsupportedValueError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tt.path, ue.Path)
		})
	}
}

func TestCodec_FailureDoesNotLeakState(t *testing.T) {
	c := New()
	bad := Tab(List(Str("leaky string"), Tab(NewTable()), Opaque(1)))
	_, err := c.Serialize(bad)
	require.Error(t, err)

	// A fresh call must number references from zero again.
	out, err := c.Serialize(Tab(List(Str("leaky string"), Str("leaky string"))))
	require.NoError(t, err)
	assert.Equal(t, "1:T1~leaky~`string:2<0:z", out)

	_, err = c.Unserialize("1:T1shello:2<5:z")
	require.Error(t, err)
	_, err = c.Unserialize("1:<0:")
	require.Error(t, err)
}

// ============================================================
// Shared and circular structure
// ============================================================

func TestRoundTrip_SharedIdentity(t *testing.T) {
	shared := Map(Entry{Key: Str("name"), Value: Str("shared")})
	root := Map(
		Entry{Key: Str("left"), Value: Tab(shared)},
		Entry{Key: Str("right"), Value: Tab(shared)},
	)

	out, err := Serialize(Tab(root))
	require.NoError(t, err)
	back, err := Unserialize(out)
	require.NoError(t, err)

	tab := back.AsTable()
	left := tab.Get(Str("left")).AsTable()
	right := tab.Get(Str("right")).AsTable()
	require.NotNil(t, left)
	assert.Same(t, left, right)
}

func TestRoundTrip_Cycles(t *testing.T) {
	a := NewTable()
	b := NewTable()
	a.MustSet(Str("b"), Tab(b))
	b.MustSet(Str("a"), Tab(a))
	b.MustSet(Tab(a), Str("table key"))

	out, err := Serialize(Tab(a))
	require.NoError(t, err)
	back, err := Unserialize(out)
	require.NoError(t, err)

	a2 := back.AsTable()
	b2 := a2.Get(Str("b")).AsTable()
	require.NotNil(t, b2)
	assert.Same(t, a2, b2.Get(Str("a")).AsTable())
	assert.Equal(t, Str("table key"), b2.Get(Tab(a2)))
	assert.True(t, Equal(Tab(a), back))
}

func TestRoundTrip_StringDedup(t *testing.T) {
	long := "a repeated value"
	list := List(Str(long), Str(long), Str(long), Str("tiny"), Str("tiny"))

	out, err := Serialize(Tab(list))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "repeated"))
	assert.Equal(t, 2, strings.Count(out, "<0:"))
	assert.Equal(t, 2, strings.Count(out, "stiny:"))

	back, err := Unserialize(out)
	require.NoError(t, err)
	assert.True(t, Equal(Tab(list), back))
}

// ============================================================
// Depth limit
// ============================================================

func nested(depth int) Value {
	v := Int(1)
	for i := 0; i < depth; i++ {
		v = Tab(List(v))
	}
	return v
}

func TestCodec_MaxDepth(t *testing.T) {
	c := New(WithMaxDepth(3))

	out, err := c.Serialize(nested(3))
	require.NoError(t, err)
	_, err = c.Unserialize(out)
	require.NoError(t, err)

	_, err = c.Serialize(nested(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxDepth))
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.False(t, errors.Is(err, ErrFormat))
	var uerr *UnsupportedValueError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindTable, uerr.Kind)
	assert.Equal(t, "$[1][1][1]", uerr.Path)

	deep, err := Serialize(nested(5))
	require.NoError(t, err)
	_, err = c.Unserialize(deep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxDepth))
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestCodec_DefaultDepthReportsError(t *testing.T) {
	_, err := Serialize(nested(DefaultMaxDepth + 10))
	assert.True(t, errors.Is(err, ErrMaxDepth))

	text := "1:" + strings.Repeat("T1", DefaultMaxDepth+10) + "1" + strings.Repeat("z", DefaultMaxDepth+10)
	_, err = Unserialize(text)
	assert.True(t, errors.Is(err, ErrMaxDepth))
}

// ============================================================
// Property tests
// ============================================================

func TestRoundTrip_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 300; i++ {
		v := randomValue(rng, 4, nil)
		out, err := Serialize(v)
		require.NoError(t, err, "value %s", v)
		back, err := Unserialize(out)
		require.NoError(t, err, "text %q", out)
		require.True(t, Equal(v, back), "value %s\ntext %q\nback %s", v, out, back)
	}
}

func TestCodec_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	errs := make(chan error, 32)

	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(g)))
			for i := 0; i < 50; i++ {
				v := randomValue(rng, 3, nil)
				out, err := c.Serialize(v)
				if err != nil {
					errs <- err
					return
				}
				back, err := c.Unserialize(out)
				if err != nil {
					errs <- err
					return
				}
				if !Equal(v, back) {
					errs <- fmt.Errorf("goroutine %d: mismatch for %q", g, out)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// randomValue builds a value graph. pool collects tables so later picks can
// share or cycle back to them.
func randomValue(rng *rand.Rand, depth int, pool []*Table) Value {
	choice := rng.Intn(9)
	if depth == 0 && choice >= 7 {
		choice = rng.Intn(7)
	}
	switch choice {
	case 0:
		return Nil()
	case 1:
		return Bool(rng.Intn(2) == 0)
	case 2:
		return Int(int64(rng.Intn(40) - 10))
	case 3:
		return Num(rng.NormFloat64() * 1e6)
	case 4:
		return Str(randomString(rng))
	case 5:
		return Str([]string{"repeated string", "again:and|again", "x"}[rng.Intn(3)])
	case 6:
		if len(pool) > 0 {
			return Tab(pool[rng.Intn(len(pool))])
		}
		return Tab(NewTable())
	}

	t := NewTable()
	pool = append(pool, t)
	n := rng.Intn(5)
	for i := 0; i < n; i++ {
		var k Value
		switch rng.Intn(3) {
		case 0:
			k = Int(int64(i + 1))
		case 1:
			k = Str(randomString(rng))
		default:
			k = randomValue(rng, depth-1, pool)
		}
		if k.IsNil() || k.Kind() == KindTable {
			k = Str(fmt.Sprintf("k%d", i))
		}
		t.MustSet(k, randomValue(rng, depth-1, pool))
	}
	if rng.Intn(4) == 0 {
		t.MustSet(Str("loop"), Tab(pool[rng.Intn(len(pool))]))
	}
	return Tab(t)
}

func randomString(rng *rand.Rand) string {
	n := rng.Intn(12)
	b := make([]byte, n)
	for i := range b {
		if rng.Intn(4) == 0 {
			b[i] = byte(rng.Intn(256))
		} else {
			b[i] = byte('a' + rng.Intn(26))
		}
	}
	return string(b)
}

// ============================================================
// Benchmarks
// ============================================================

func benchValue() Value {
	items := NewTable()
	for i := 0; i < 100; i++ {
		items.Append(Tab(Map(
			Entry{Key: Str("id"), Value: Int(int64(i))},
			Entry{Key: Str("name"), Value: Str(fmt.Sprintf("item %d", i))},
			Entry{Key: Str("kind"), Value: Str("inventory")},
			Entry{Key: Str("price"), Value: Num(float64(i) / 7)},
		)))
	}
	return Tab(items)
}

func BenchmarkSerialize(b *testing.B) {
	v := benchValue()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Serialize(v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnserialize(b *testing.B) {
	s, err := Serialize(benchValue())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Unserialize(s); err != nil {
			b.Fatal(err)
		}
	}
}
