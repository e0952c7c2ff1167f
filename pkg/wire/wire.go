// Package wire encodes LSF call, reply and signal bodies as D-Bus messages.
// The bus implementations move the encoded bytes; typed managers only see
// the decoded positional arguments and convert them with Store.
package wire

import (
    "bytes"
    "encoding/binary"
    "errors"
    "fmt"
    "reflect"

    "github.com/godbus/dbus/v5"
)

// ObjectPath is the object every LSF controller service interface lives on.
const ObjectPath dbus.ObjectPath = "/org/allseen/LSF/ControllerService"

var (
    ErrArgCount = errors.New("wire: argument count mismatch")
    ErrArgType  = errors.New("wire: argument type mismatch")
    ErrKind     = errors.New("wire: unexpected message kind")
)

type Kind uint8

const (
    KindCall Kind = iota + 1
    KindReply
    KindSignal
)

func (k Kind) String() string {
    switch k {
    case KindCall:
        return "call"
    case KindReply:
        return "reply"
    case KindSignal:
        return "signal"
    }
    return fmt.Sprintf("kind(%d)", uint8(k))
}

// Message is the decoded form of one frame.
type Message struct {
    Kind      Kind
    Interface string
    Member    string
    // Serial is carried as the reply serial of KindReply messages.
    Serial uint32
    Args   []interface{}
}

// Marshal encodes m in little-endian D-Bus wire format.
func Marshal(m Message) (b []byte, err error) {
    defer func() {
        // SignatureOf panics on types D-Bus cannot represent
        if r := recover(); r != nil {
            b, err = nil, fmt.Errorf("wire: cannot encode %s.%s: %v", m.Interface, m.Member, r)
        }
    }()
    msg := &dbus.Message{Headers: map[dbus.HeaderField]dbus.Variant{
        dbus.FieldPath:      dbus.MakeVariant(ObjectPath),
        dbus.FieldInterface: dbus.MakeVariant(m.Interface),
        dbus.FieldMember:    dbus.MakeVariant(m.Member),
    }}
    switch m.Kind {
    case KindCall:
        msg.Type = dbus.TypeMethodCall
    case KindReply:
        msg.Type = dbus.TypeMethodReply
        msg.Headers[dbus.FieldReplySerial] = dbus.MakeVariant(m.Serial)
    case KindSignal:
        msg.Type = dbus.TypeSignal
    default:
        return nil, fmt.Errorf("%w: %s", ErrKind, m.Kind)
    }
    if len(m.Args) > 0 {
        msg.Body = m.Args
        msg.Headers[dbus.FieldSignature] = dbus.MakeVariant(dbus.SignatureOf(m.Args...))
    }
    var buf bytes.Buffer
    if err := msg.EncodeTo(&buf, binary.LittleEndian); err != nil {
        return nil, fmt.Errorf("wire: encode %s.%s: %w", m.Interface, m.Member, err)
    }
    return buf.Bytes(), nil
}

// Unmarshal decodes a frame produced by Marshal.
func Unmarshal(b []byte) (Message, error) {
    msg, err := dbus.DecodeMessage(bytes.NewReader(b))
    if err != nil { return Message{}, fmt.Errorf("wire: decode: %w", err) }
    var m Message
    switch msg.Type {
    case dbus.TypeMethodCall:
        m.Kind = KindCall
    case dbus.TypeMethodReply:
        m.Kind = KindReply
        if v, ok := msg.Headers[dbus.FieldReplySerial]; ok {
            m.Serial, _ = v.Value().(uint32)
        }
    case dbus.TypeSignal:
        m.Kind = KindSignal
    default:
        return Message{}, fmt.Errorf("%w: %s", ErrKind, msg.Type)
    }
    if v, ok := msg.Headers[dbus.FieldInterface]; ok { m.Interface, _ = v.Value().(string) }
    if v, ok := msg.Headers[dbus.FieldMember]; ok { m.Member, _ = v.Value().(string) }
    m.Args = msg.Body
    return m, nil
}

// RoundTrip encodes and decodes m, yielding arguments in exactly the shape a
// remote peer would see them.
func RoundTrip(m Message) (Message, error) {
    b, err := Marshal(m)
    if err != nil { return Message{}, err }
    return Unmarshal(b)
}

// Signature returns the D-Bus signature of args.
func Signature(args ...interface{}) (sig string, err error) {
    defer func() {
        if r := recover(); r != nil { err = fmt.Errorf("wire: signature: %v", r) }
    }()
    return dbus.SignatureOf(args...).String(), nil
}

// Store converts decoded args into dest. The argument count must match
// exactly and every argument must have the D-Bus type of its destination;
// dbus.Store alone would convert a u into a string.
func Store(args []interface{}, dest ...interface{}) error {
    if len(args) != len(dest) {
        return fmt.Errorf("%w: got %d, want %d", ErrArgCount, len(args), len(dest))
    }
    for i := range args {
        if err := checkArg(i, args[i], dest[i]); err != nil { return err }
    }
    return dbus.Store(args, dest...)
}

func checkArg(i int, arg, dest interface{}) error {
    t := reflect.TypeOf(dest)
    if t == nil || t.Kind() != reflect.Ptr { return fmt.Errorf("wire: destination %d is not a pointer", i) }
    if !matches(arg, t.Elem()) {
        return fmt.Errorf("%w: argument %d is %s, want %s", ErrArgType, i, describe(arg), typeSignature(t.Elem()))
    }
    return nil
}

var variantType = reflect.TypeOf(dbus.Variant{})

// matches reports whether a decoded value has the D-Bus type of t. Structs
// arrive as []interface{}, arrays of structs as [][]interface{}.
func matches(v interface{}, t reflect.Type) bool {
    if t.Kind() == reflect.Interface { return true }
    if v == nil { return false }
    if _, ok := v.(dbus.Variant); ok { return t == variantType }
    if t == variantType { return false }
    if fields, ok := v.([]interface{}); ok {
        if t.Kind() != reflect.Struct { return false }
        ft := structFields(t)
        if len(ft) != len(fields) { return false }
        for i := range fields {
            if !matches(fields[i], ft[i]) { return false }
        }
        return true
    }
    rv := reflect.ValueOf(v)
    switch rv.Kind() {
    case reflect.Slice, reflect.Array:
        if t.Kind() != reflect.Slice && t.Kind() != reflect.Array { return false }
        if rv.Len() == 0 {
            if rv.Type().Elem() == reflect.TypeOf([]interface{}(nil)) { return t.Elem().Kind() == reflect.Struct }
            return typeSignature(rv.Type()) == typeSignature(t)
        }
        for i := 0; i < rv.Len(); i++ {
            if !matches(rv.Index(i).Interface(), t.Elem()) { return false }
        }
        return true
    case reflect.Map:
        return typeSignature(rv.Type()) == typeSignature(t)
    }
    return typeSignature(rv.Type()) == typeSignature(t)
}

// structFields lists the field types dbus.Store fills, in order.
func structFields(t reflect.Type) []reflect.Type {
    var out []reflect.Type
    for i := 0; i < t.NumField(); i++ {
        f := t.Field(i)
        if f.PkgPath == "" && f.Tag.Get("dbus") != "-" { out = append(out, f.Type) }
    }
    return out
}

func typeSignature(t reflect.Type) (sig string) {
    defer func() {
        if r := recover(); r != nil { sig = "<" + t.String() + ">" }
    }()
    return dbus.SignatureOfType(t).String()
}

func describe(v interface{}) string {
    if v == nil { return "nil" }
    if _, ok := v.([]interface{}); ok { return "struct" }
    return typeSignature(reflect.TypeOf(v))
}

// Variant wraps v for "v" typed arguments such as state field values.
func Variant(v interface{}) dbus.Variant { return dbus.MakeVariant(v) }

// StoreVariant converts the value held in v into dest, with the same type
// check as Store.
func StoreVariant(v dbus.Variant, dest interface{}) error {
    return Store([]interface{}{v.Value()}, dest)
}
