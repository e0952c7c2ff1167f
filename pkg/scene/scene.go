// Package scene is the typed facade over the Scene interface.
package scene

import (
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

type Callback interface {
    GetAllSceneIDsReplyCB(rc lsf.ResponseCode, ids []string)
    GetSceneNameReplyCB(rc lsf.ResponseCode, id, language, name string)
    SetSceneNameReplyCB(rc lsf.ResponseCode, id, language string)
    CreateSceneReplyCB(rc lsf.ResponseCode, id string)
    UpdateSceneReplyCB(rc lsf.ResponseCode, id string)
    DeleteSceneReplyCB(rc lsf.ResponseCode, id string)
    GetSceneReplyCB(rc lsf.ResponseCode, id string, scene lsf.Scene)
    ApplySceneReplyCB(rc lsf.ResponseCode, id string)

    ScenesNameChangedCB(ids []string)
    ScenesCreatedCB(ids []string)
    ScenesUpdatedCB(ids []string)
    ScenesDeletedCB(ids []string)
    ScenesAppliedCB(ids []string)
}

type NopCallback struct{}

var _ Callback = NopCallback{}

func (NopCallback) GetAllSceneIDsReplyCB(lsf.ResponseCode, []string)             {}
func (NopCallback) GetSceneNameReplyCB(lsf.ResponseCode, string, string, string) {}
func (NopCallback) SetSceneNameReplyCB(lsf.ResponseCode, string, string)         {}
func (NopCallback) CreateSceneReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) UpdateSceneReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) DeleteSceneReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) GetSceneReplyCB(lsf.ResponseCode, string, lsf.Scene)          {}
func (NopCallback) ApplySceneReplyCB(lsf.ResponseCode, string)                   {}
func (NopCallback) ScenesNameChangedCB([]string)                                 {}
func (NopCallback) ScenesCreatedCB([]string)                                     {}
func (NopCallback) ScenesUpdatedCB([]string)                                     {}
func (NopCallback) ScenesDeletedCB([]string)                                     {}
func (NopCallback) ScenesAppliedCB([]string)                                     {}

type Manager struct {
    c  *client.Client
    cb Callback
}

var _ client.Manager = (*Manager)(nil)

func NewManager(c *client.Client, cb Callback) (*Manager, error) {
    if cb == nil { return nil, client.ErrNilCallback }
    m := &Manager{c: c, cb: cb}
    if err := c.Register(m); err != nil { return nil, err }
    return m, nil
}

func (m *Manager) EntityType() client.EntityType { return client.EntityScene }

func (m *Manager) SignalHandlers() []client.SignalHandler {
    return []client.SignalHandler{
        client.IDListSignal(lsf.SceneInterface, "ScenesNameChanged", m.cb.ScenesNameChangedCB),
        client.IDListSignal(lsf.SceneInterface, "ScenesCreated", m.cb.ScenesCreatedCB),
        client.IDListSignal(lsf.SceneInterface, "ScenesUpdated", m.cb.ScenesUpdatedCB),
        client.IDListSignal(lsf.SceneInterface, "ScenesDeleted", m.cb.ScenesDeletedCB),
        client.IDListSignal(lsf.SceneInterface, "ScenesApplied", m.cb.ScenesAppliedCB),
    }
}

func (m *Manager) Close() { m.c.Unregister(client.EntityScene) }

func (m *Manager) call(member string, h client.ReplyHandler, args ...interface{}) client.Status {
    return m.c.CallAsync(lsf.SceneInterface, member, h, args...)
}

func (m *Manager) GetAllSceneIDs() client.Status {
    return m.call("GetAllSceneIDs", client.OnIDList(m.cb.GetAllSceneIDsReplyCB))
}

func (m *Manager) GetSceneName(id, language string) client.Status {
    return m.call("GetSceneName", client.OnIDLanguageName(m.cb.GetSceneNameReplyCB), id, language)
}

func (m *Manager) SetSceneName(id, name, language string) client.Status {
    return m.call("SetSceneName", client.OnIDName(m.cb.SetSceneNameReplyCB), id, name, language)
}

// CreateScene sends the four component arrays followed by the name.
func (m *Manager) CreateScene(s lsf.Scene, name, language string) client.Status {
    args := append(s.Args(), name, language)
    return m.call("CreateScene", client.OnID(m.cb.CreateSceneReplyCB), args...)
}

func (m *Manager) UpdateScene(id string, s lsf.Scene) client.Status {
    args := append([]interface{}{id}, s.Args()...)
    return m.call("UpdateScene", client.OnID(m.cb.UpdateSceneReplyCB), args...)
}

func (m *Manager) DeleteScene(id string) client.Status {
    return m.call("DeleteScene", client.OnID(m.cb.DeleteSceneReplyCB), id)
}

func (m *Manager) GetScene(id string) client.Status {
    return m.call("GetScene", client.OnCustom(func(args []interface{}) error {
        var (
            rc  lsf.ResponseCode
            sid string
            s   lsf.Scene
        )
        err := wire.Store(args, &rc, &sid, &s.TransitionToState, &s.TransitionToPreset, &s.PulseWithState, &s.PulseWithPreset)
        if err != nil { return err }
        m.cb.GetSceneReplyCB(rc, sid, s)
        return nil
    }), id)
}

func (m *Manager) ApplyScene(id string) client.Status {
    return m.call("ApplyScene", client.OnID(m.cb.ApplySceneReplyCB), id)
}

// GetSceneDataSet requests the scene and then its name.
func (m *Manager) GetSceneDataSet(id, language string) client.Status {
    if st := m.GetScene(id); st != client.StatusOK { return st }
    return m.GetSceneName(id, language)
}
