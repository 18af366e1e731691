/*
Package dfu drives the legacy Nordic BLE device firmware update exchange
and checks that a bootloader implements it correctly.

The DFU service exposes two characteristics: the control point, which
takes op codes and answers with notifications, and the packet
characteristic, which takes the image size, the init (CRC) packet and the
image itself in fixed size packets.

A Controller issues one request at a time over a Transport and checks
every notification against the response it expects:

	link, err := dialer.Dial(ctx)
	pipes, err := link.Discover(ctx)
	c := dfu.NewController(link, pipes, dfu.WithLogger(log))
	img, err := dfu.Segment(bin, dfu.PacketSize)

	c.EnableNotifications(ctx)
	c.Start(ctx, img.SizePacket, dfu.ResultSuccess)
	c.SendInit(ctx, img.CRCPacket)
	c.BeginData(ctx)
	c.Stream(ctx, img.Packets)
	c.Validate(ctx, dfu.ResultSuccess)
	c.Activate(ctx)

SCENARIOS

A Scenario is one exchange with an expected outcome, good or bad: a
complete transfer, an oversized image, withheld or extra packets, a stall
past the device's inactivity timeout, an out of band reset and a corrupt
CRC. A Driver connects, runs a scenario and records each step in a Report.
A failed run still activates the device so it leaves its bootloader.

ERRORS

Timeouts match ErrTimeout. A notification that answers the request the
wrong way is a *ProtocolError, or a *ChecksumError when the device
reported CRC_ERROR. Sends that fail on every try are a *TransportError.

Package sim provides an in-memory bootloader to run against; package
sensor decodes the measurement records of BLE health sensors.
*/
package dfu
