package wire

import (
    "errors"
    "reflect"
    "testing"

    "github.com/godbus/dbus/v5"
    "go.uber.org/goleak"

    "github.com/amirimatin/go-lsf/pkg/lsf"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

func TestLampStateRoundTrip(t *testing.T) {
    in := lsf.LampState{OnOff: true, Hue: 1, Saturation: 2, Brightness: 3, ColorTemp: 4}
    out, err := RoundTrip(Message{Kind: KindCall, Interface: lsf.LampInterface, Member: "TransitionLampState", Args: []interface{}{"lamp-1", in, uint32(50)}})
    if err != nil { t.Fatalf("round trip: %v", err) }
    if out.Kind != KindCall || out.Interface != lsf.LampInterface || out.Member != "TransitionLampState" {
        t.Fatalf("unexpected header: %+v", out)
    }
    var (
        id     string
        got    lsf.LampState
        period uint32
    )
    if err := Store(out.Args, &id, &got, &period); err != nil { t.Fatalf("store: %v", err) }
    if id != "lamp-1" || got != in || period != 50 {
        t.Fatalf("got (%q, %+v, %d), want (lamp-1, %+v, 50)", id, got, period, in)
    }
}

func TestSceneRoundTrip(t *testing.T) {
    st := lsf.LampState{OnOff: true, Brightness: 9}
    in := lsf.Scene{
        TransitionToState:  []lsf.TransitionLampsLampGroupsToState{{Lamps: []string{"a"}, LampGroups: []string{}, State: st, Period: 3}},
        TransitionToPreset: []lsf.TransitionLampsLampGroupsToPreset{{Lamps: []string{}, LampGroups: []string{"g"}, PresetID: "p", Period: 4}},
        PulseWithState:     []lsf.PulseLampsLampGroupsWithState{{Lamps: []string{"b"}, LampGroups: []string{}, FromState: st, ToState: lsf.LampState{Hue: 7}, Period: 1, Duration: 2, NumPulses: 3}},
        PulseWithPreset:    []lsf.PulseLampsLampGroupsWithPreset{{Lamps: []string{"c"}, LampGroups: []string{"h"}, FromPresetID: "x", ToPresetID: "y", Period: 5, Duration: 6, NumPulses: 7}},
    }
    sig, err := Signature(in.Args()...)
    if err != nil { t.Fatalf("signature: %v", err) }
    if want := "a(asas(buuuub)u)a(asassu)a(asas(buuuub)(buuuub)uuu)a(asasssuuu)"; sig != want {
        t.Fatalf("signature = %s, want %s", sig, want)
    }
    out, err := RoundTrip(Message{Kind: KindReply, Interface: lsf.SceneInterface, Member: "GetScene", Serial: 9, Args: in.Args()})
    if err != nil { t.Fatalf("round trip: %v", err) }
    if out.Serial != 9 { t.Fatalf("serial = %d, want 9", out.Serial) }
    var got lsf.Scene
    if err := Store(out.Args, &got.TransitionToState, &got.TransitionToPreset, &got.PulseWithState, &got.PulseWithPreset); err != nil {
        t.Fatalf("store: %v", err)
    }
    if !reflect.DeepEqual(got, in) { t.Fatalf("scene mismatch:\n got %+v\nwant %+v", got, in) }
}

func TestEmptySceneEncodesEmptyArrays(t *testing.T) {
    out, err := RoundTrip(Message{Kind: KindSignal, Interface: lsf.SceneInterface, Member: "X", Args: lsf.Scene{}.Args()})
    if err != nil { t.Fatalf("round trip: %v", err) }
    if len(out.Args) != 4 { t.Fatalf("args = %d, want 4", len(out.Args)) }
}

func TestStoreArgCountMismatch(t *testing.T) {
    out, err := RoundTrip(Message{Kind: KindReply, Interface: lsf.LampGroupInterface, Member: "CreateLampGroup", Args: []interface{}{uint32(0)}})
    if err != nil { t.Fatalf("round trip: %v", err) }
    var rc uint32
    var id string
    err = Store(out.Args, &rc, &id)
    if !errors.Is(err, ErrArgCount) { t.Fatalf("err = %v, want ErrArgCount", err) }
}

func TestStoreTypeMismatch(t *testing.T) {
    out, err := RoundTrip(Message{Kind: KindReply, Interface: lsf.LampInterface, Member: "GetLampName", Args: []interface{}{"not-a-code"}})
    if err != nil { t.Fatalf("round trip: %v", err) }
    var rc uint32
    if err := Store(out.Args, &rc); err == nil { t.Fatalf("expected type mismatch error") }
}

func TestVariantField(t *testing.T) {
    out, err := RoundTrip(Message{Kind: KindReply, Interface: lsf.LampInterface, Member: "GetLampStateField", Args: []interface{}{uint32(0), "lamp", lsf.FieldOnOff, Variant(true)}})
    if err != nil { t.Fatalf("round trip: %v", err) }
    var (
        rc        lsf.ResponseCode
        id, field string
        v         dbus.Variant
    )
    if err := Store(out.Args, &rc, &id, &field, &v); err != nil { t.Fatalf("store: %v", err) }
    if b, ok := v.Value().(bool); !ok || !b { t.Fatalf("variant = %v, want true", v) }
}

func TestMarshalRejectsUnsupportedTypes(t *testing.T) {
    if _, err := Marshal(Message{Kind: KindCall, Interface: lsf.LampInterface, Member: "M", Args: []interface{}{make(chan int)}}); err == nil {
        t.Fatalf("expected error for channel argument")
    }
    if _, err := Marshal(Message{Interface: lsf.LampInterface, Member: "M"}); !errors.Is(err, ErrKind) {
        t.Fatalf("expected ErrKind, got %v", err)
    }
}

func TestStoreVariant(t *testing.T) {
    var hue uint32
    if err := StoreVariant(Variant(uint32(12)), &hue); err != nil || hue != 12 { t.Fatalf("hue=%d err=%v", hue, err) }
    var on bool
    if err := StoreVariant(Variant(uint32(1)), &on); err == nil { t.Fatalf("expected mismatch storing uint32 into bool") }
}

func TestStoreRejectsConvertibleTypes(t *testing.T) {
    out, err := RoundTrip(Message{Kind: KindReply, Interface: lsf.LampInterface, Member: "GetLampName", Args: []interface{}{uint32(0), "l1", uint32(7), "name"}})
    if err != nil { t.Fatalf("round trip: %v", err) }
    var (
        rc             lsf.ResponseCode
        id, lang, name string
    )
    if err := Store(out.Args, &rc, &id, &lang, &name); !errors.Is(err, ErrArgType) { t.Fatalf("u into string: err=%v", err) }
    if lang != "" { t.Fatalf("lang=%q written despite mismatch", lang) }

    var u uint32
    if err := Store([]interface{}{int32(7)}, &u); !errors.Is(err, ErrArgType) { t.Fatalf("i into uint32: err=%v", err) }

    var st lsf.LampState
    bad := []interface{}{true, int32(1), uint32(2), uint32(3), uint32(4), false}
    if err := Store([]interface{}{bad}, &st); !errors.Is(err, ErrArgType) { t.Fatalf("struct field: err=%v", err) }

    var s string
    if err := StoreVariant(Variant(uint32(12)), &s); !errors.Is(err, ErrArgType) { t.Fatalf("variant: err=%v", err) }
}

func TestStoreAcceptsEmptyStructArrays(t *testing.T) {
    out, err := RoundTrip(Message{Kind: KindReply, Interface: lsf.SceneInterface, Member: "GetScene", Args: lsf.Scene{}.Args()})
    if err != nil { t.Fatalf("round trip: %v", err) }
    var got lsf.Scene
    if err := Store(out.Args, &got.TransitionToState, &got.TransitionToPreset, &got.PulseWithState, &got.PulseWithPreset); err != nil {
        t.Fatalf("store: %v", err)
    }
    if len(got.TransitionToState) != 0 || len(got.PulseWithPreset) != 0 { t.Fatalf("scene=%+v", got) }
}
