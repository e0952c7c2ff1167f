// Package masterscene is the typed facade over the MasterScene interface.
package masterscene

import (
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

type Callback interface {
    GetAllMasterSceneIDsReplyCB(rc lsf.ResponseCode, ids []string)
    GetMasterSceneNameReplyCB(rc lsf.ResponseCode, id, language, name string)
    SetMasterSceneNameReplyCB(rc lsf.ResponseCode, id, language string)
    CreateMasterSceneReplyCB(rc lsf.ResponseCode, id string)
    UpdateMasterSceneReplyCB(rc lsf.ResponseCode, id string)
    DeleteMasterSceneReplyCB(rc lsf.ResponseCode, id string)
    GetMasterSceneReplyCB(rc lsf.ResponseCode, id string, ms lsf.MasterScene)
    ApplyMasterSceneReplyCB(rc lsf.ResponseCode, id string)

    MasterScenesNameChangedCB(ids []string)
    MasterScenesCreatedCB(ids []string)
    MasterScenesUpdatedCB(ids []string)
    MasterScenesDeletedCB(ids []string)
    MasterScenesAppliedCB(ids []string)
}

type NopCallback struct{}

var _ Callback = NopCallback{}

func (NopCallback) GetAllMasterSceneIDsReplyCB(lsf.ResponseCode, []string)             {}
func (NopCallback) GetMasterSceneNameReplyCB(lsf.ResponseCode, string, string, string) {}
func (NopCallback) SetMasterSceneNameReplyCB(lsf.ResponseCode, string, string)         {}
func (NopCallback) CreateMasterSceneReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) UpdateMasterSceneReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) DeleteMasterSceneReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) GetMasterSceneReplyCB(lsf.ResponseCode, string, lsf.MasterScene)    {}
func (NopCallback) ApplyMasterSceneReplyCB(lsf.ResponseCode, string)                   {}
func (NopCallback) MasterScenesNameChangedCB([]string)                                 {}
func (NopCallback) MasterScenesCreatedCB([]string)                                     {}
func (NopCallback) MasterScenesUpdatedCB([]string)                                     {}
func (NopCallback) MasterScenesDeletedCB([]string)                                     {}
func (NopCallback) MasterScenesAppliedCB([]string)                                     {}

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

func (m *Manager) EntityType() client.EntityType { return client.EntityMasterScene }

func (m *Manager) SignalHandlers() []client.SignalHandler {
    return []client.SignalHandler{
        client.IDListSignal(lsf.MasterSceneInterface, "MasterScenesNameChanged", m.cb.MasterScenesNameChangedCB),
        client.IDListSignal(lsf.MasterSceneInterface, "MasterScenesCreated", m.cb.MasterScenesCreatedCB),
        client.IDListSignal(lsf.MasterSceneInterface, "MasterScenesUpdated", m.cb.MasterScenesUpdatedCB),
        client.IDListSignal(lsf.MasterSceneInterface, "MasterScenesDeleted", m.cb.MasterScenesDeletedCB),
        client.IDListSignal(lsf.MasterSceneInterface, "MasterScenesApplied", m.cb.MasterScenesAppliedCB),
    }
}

func (m *Manager) Close() { m.c.Unregister(client.EntityMasterScene) }

func (m *Manager) call(member string, h client.ReplyHandler, args ...interface{}) client.Status {
    return m.c.CallAsync(lsf.MasterSceneInterface, member, h, args...)
}

func (m *Manager) GetAllMasterSceneIDs() client.Status {
    return m.call("GetAllMasterSceneIDs", client.OnIDList(m.cb.GetAllMasterSceneIDsReplyCB))
}

func (m *Manager) GetMasterSceneName(id, language string) client.Status {
    return m.call("GetMasterSceneName", client.OnIDLanguageName(m.cb.GetMasterSceneNameReplyCB), id, language)
}

func (m *Manager) SetMasterSceneName(id, name, language string) client.Status {
    return m.call("SetMasterSceneName", client.OnIDName(m.cb.SetMasterSceneNameReplyCB), id, name, language)
}

func (m *Manager) CreateMasterScene(ms lsf.MasterScene, name, language string) client.Status {
    args := append(ms.Args(), name, language)
    return m.call("CreateMasterScene", client.OnID(m.cb.CreateMasterSceneReplyCB), args...)
}

func (m *Manager) UpdateMasterScene(id string, ms lsf.MasterScene) client.Status {
    args := append([]interface{}{id}, ms.Args()...)
    return m.call("UpdateMasterScene", client.OnID(m.cb.UpdateMasterSceneReplyCB), args...)
}

func (m *Manager) DeleteMasterScene(id string) client.Status {
    return m.call("DeleteMasterScene", client.OnID(m.cb.DeleteMasterSceneReplyCB), id)
}

func (m *Manager) GetMasterScene(id string) client.Status {
    return m.call("GetMasterScene", client.OnCustom(func(args []interface{}) error {
        var (
            rc  lsf.ResponseCode
            mid string
            ms  lsf.MasterScene
        )
        if err := wire.Store(args, &rc, &mid, &ms.Scenes); err != nil { return err }
        m.cb.GetMasterSceneReplyCB(rc, mid, ms)
        return nil
    }), id)
}

func (m *Manager) ApplyMasterScene(id string) client.Status {
    return m.call("ApplyMasterScene", client.OnID(m.cb.ApplyMasterSceneReplyCB), id)
}

func (m *Manager) GetMasterSceneDataSet(id, language string) client.Status {
    if st := m.GetMasterScene(id); st != client.StatusOK { return st }
    return m.GetMasterSceneName(id, language)
}
