/*
Package gatt is an in-memory GATT attribute database.

Services are built from characteristics; each characteristic routes reads,
writes and notification subscriptions to handlers:

	svc := gatt.NewService(gatt.MustParseUUID("00001530-1212-efde-1523-785feabcd123"))
	c := svc.AddCharacteristic(gatt.MustParseUUID("00001531-1212-efde-1523-785feabcd123"))
	c.HandleWriteFunc(func(r gatt.Request, data []byte) byte {
		return gatt.StatusSuccess
	})
	c.HandleNotifyFunc(func(r gatt.Request, n gatt.Notifier) {
		go func() { n.Write([]byte("hello")) }()
	})

A Database assigns attribute handles to a set of services and serves handle
based Read and Write requests the way a connected peer issues them. Writing
0x0001 to a characteristic's client characteristic configuration descriptor
starts its NotifyHandler; writing 0x0000 stops it. Notifications are handed
to the Database's NotifyFunc.
*/
package gatt
