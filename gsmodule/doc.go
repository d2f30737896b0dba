// Package gsmodule controls a Gainspan Serial2WiFi module over its AT
// command interface.
//
// A Module is the session context of one physical module. It sends commands
// through a Transport, one at a time, and keeps the host side state of the
// module: the connection table, the certificate store, the profile store and
// the network connection manager (NCM).
//
// Every operation returns an error. A nil error means the module confirmed
// the command. Module failures are reported as ErrCommandFailed regardless
// of their cause; caller mistakes are rejected before any command is sent
// with a dedicated error such as ErrInvalidProfile or ErrConnNotOpen.
//
// Unsolicited events are buffered by the Transport and applied by
// HandleEvents, which NCM.Run calls periodically:
//
//	m, err := gsmodule.NewModule(tr, nil)
//	if err != nil {
//		return err
//	}
//
//	if err := m.NCM().Enable(gsmodule.NCMOptions{Driver: gsmodule.DriverHost}); err != nil {
//		return err
//	}
//
//	go m.NCM().Run(ctx)
package gsmodule
