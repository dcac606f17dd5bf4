// Package usbserial drives USB serial adapters over raw bulk endpoints
// with two background pumps: a read pump that keeps one inbound transfer
// outstanding and hands every completed chunk to a callback, and a write
// pump that sends the most recent pending payload.
//
// The package does not talk to hardware itself. A Connection supplies the
// bulk transfers (see the usbfs and tty packages) and a Driver specializes
// the device for a chip family: endpoint selection, line settings and the
// inbound framing format.
//
// # Basic Usage
//
// Open an FTDI adapter through Linux usbfs:
//
//	conn, err := usbfs.Open("/dev/bus/usb/001/004")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dev, err := usbserial.Open(ctx, conn, &usbserial.FTDIDriver{},
//	    usbserial.WithBaudRate(115200),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	dev.Read(func(data []byte) {
//	    fmt.Printf("% X\n", data)
//	})
//	dev.Write([]byte("AT\r"))
//
// Write never blocks. When a payload is still waiting for the write pump,
// a newer one replaces it; WithWriteQueueDepth switches to a bounded FIFO.
//
// # Framing
//
// FTDI chips prefix every 64-byte bulk IN packet with two modem/line
// status bytes. Devices created with FTDIDriver strip them before the
// callback runs, so a 190 byte chunk yields 184 payload bytes. Decode
// exposes the same transformation for offline use.
//
// # Pump Control
//
// KillReadPump and KillWritePump stop a pump and wait for it to exit.
// The matching Restart calls are no-ops while a pump is running, so at most
// one pump of each kind exists. Called from inside the read callback,
// KillReadPump and Close return without waiting and the read pump exits as
// soon as the callback returns; RestartReadPump from that same callback
// returns ErrPumpBusy.
//
// # Error Handling
//
// Lifecycle misuse returns ErrDeviceNotOpen or ErrDeviceClosed. Transfer
// failures, decode invariant violations and data arriving without a
// callback never stop the pumps; they are counted in Stats and passed to
// the hook installed with WithErrorHandler. The one exception is a
// connection reporting ErrDisconnected, which ends the read pump:
//
//	usbserial.WithErrorHandler(func(err error) {
//	    var te *usbserial.TransferError
//	    if errors.As(err, &te) {
//	        log.Printf("endpoint %s: %v", te.Endpoint, te.Err)
//	    }
//	})
//
// # Default Configuration
//
//   - BaudRate: 115200
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - FlowControl: None
//   - ReadBufferSize: 16 KiB
//   - WriteTimeout: 5 seconds
//   - WriteMode: Latest
package usbserial
