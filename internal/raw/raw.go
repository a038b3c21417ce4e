// Package raw wraps the loosely-shaped JSON payloads returned by the Jira API.
// Accessors never fail: a missing or mistyped field yields the zero default, so
// callers can flatten deeply nested records without guarding every lookup.
package raw

import "fmt"

type Object map[string]any

// Str returns the string at key, "" when absent; non-string scalars are
// formatted rather than dropped since Jira occasionally returns numbers where
// strings are expected.
func (o Object) Str(key string) string {
    v, ok := o[key]
    if !ok || v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}

func (o Object) Obj(key string) Object {
    if m, ok := o[key].(map[string]any); ok { return Object(m) }
    return Object{}
}

func (o Object) List(key string) []Object {
    arr, ok := o[key].([]any)
    if !ok { return nil }
    out := make([]Object, 0, len(arr))
    for _, v := range arr {
        if m, ok := v.(map[string]any); ok { out = append(out, Object(m)) }
    }
    return out
}

func (o Object) Int64(key string) int64 {
    switch v := o[key].(type) {
    case float64: return int64(v)
    case int64: return v
    case int: return int64(v)
    }
    return 0
}

func (o Object) Has(key string) bool { _, ok := o[key]; return ok }

// Issue is one raw issue as returned inside a sprint/board issue page.
type Issue Object

func (i Issue) Key() string    { return Object(i).Str("key") }
func (i Issue) Fields() Object { return Object(i).Obj("fields") }

// Parent returns the raw parent issue and whether it is usable: the parent
// must be present and carry its own fields sub-object. The hierarchy is at
// most two levels deep, so no ancestor walk happens here.
func (i Issue) Parent() (Parent, bool) {
    p := i.Fields().Obj("parent")
    if len(p) == 0 || !p.Has("fields") { return Parent{}, false }
    return Parent(p), true
}

func (i Issue) Subtasks() []Subtask {
    subs := i.Fields().List("subtasks")
    out := make([]Subtask, 0, len(subs))
    for _, s := range subs { out = append(out, Subtask(s)) }
    return out
}

func (i Issue) Attachments() []Attachment {
    atts := i.Fields().List("attachment")
    out := make([]Attachment, 0, len(atts))
    for _, a := range atts { out = append(out, Attachment(a)) }
    return out
}

type Parent Object

func (p Parent) Key() string    { return Object(p).Str("key") }
func (p Parent) Fields() Object { return Object(p).Obj("fields") }

type Subtask Object

func (s Subtask) Key() string       { return Object(s).Str("key") }
func (s Subtask) Summary() string   { return Object(s).Obj("fields").Str("summary") }
func (s Subtask) Status() string    { return Object(s).Obj("fields").Obj("status").Str("name") }
func (s Subtask) IssueType() string { return Object(s).Obj("fields").Obj("issuetype").Str("name") }

type Attachment Object

func (a Attachment) Filename() string   { return Object(a).Str("filename") }
func (a Attachment) ContentURL() string { return Object(a).Str("content") }
