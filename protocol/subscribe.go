package protocol

import "encoding/binary"

const subscribePayloadSize = 11

// SubscribeFields is the payload shared by the subscribe command family:
// service, instance, eventgroup, major version, event and pending id, in
// that order. The zero value has every field zero; the wildcard values
// (AnyService, AnyInstance, AnyMajor, AnyEvent) must be set explicitly.
type SubscribeFields struct {
	Service    ServiceID
	Instance   InstanceID
	Eventgroup EventgroupID
	Major      MajorVersion
	Event      EventID
	Pending    PendingID
}

func (f *SubscribeFields) payloadSize() int { return subscribePayloadSize }

func (f *SubscribeFields) packPayload(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], uint16(f.Service))
	binary.LittleEndian.PutUint16(b[2:], uint16(f.Instance))
	binary.LittleEndian.PutUint16(b[4:], uint16(f.Eventgroup))
	b[6] = byte(f.Major)
	binary.LittleEndian.PutUint16(b[7:], uint16(f.Event))
	binary.LittleEndian.PutUint16(b[9:], uint16(f.Pending))
}

func (f *SubscribeFields) unpackPayload(b []byte) {
	f.Service = ServiceID(binary.LittleEndian.Uint16(b[0:]))
	f.Instance = InstanceID(binary.LittleEndian.Uint16(b[2:]))
	f.Eventgroup = EventgroupID(binary.LittleEndian.Uint16(b[4:]))
	f.Major = MajorVersion(b[6])
	f.Event = EventID(binary.LittleEndian.Uint16(b[7:]))
	f.Pending = PendingID(binary.LittleEndian.Uint16(b[9:]))
}

// Subscribe requests delivery of an eventgroup.
type Subscribe struct {
	Client ClientID
	SubscribeFields
}

func (c *Subscribe) ID() CommandID { return IDSubscribe }
func (c *Subscribe) Sender() ClientID { return c.Client }

// SubscribeAck confirms a subscription.
type SubscribeAck struct {
	Client ClientID
	SubscribeFields
}

func (c *SubscribeAck) ID() CommandID { return IDSubscribeAck }
func (c *SubscribeAck) Sender() ClientID { return c.Client }

// SubscribeNack rejects a subscription.
type SubscribeNack struct {
	Client ClientID
	SubscribeFields
}

func (c *SubscribeNack) ID() CommandID { return IDSubscribeNack }
func (c *SubscribeNack) Sender() ClientID { return c.Client }

// Unsubscribe withdraws a subscription.
type Unsubscribe struct {
	Client ClientID
	SubscribeFields
}

func (c *Unsubscribe) ID() CommandID { return IDUnsubscribe }
func (c *Unsubscribe) Sender() ClientID { return c.Client }

// UnsubscribeAck confirms a withdrawal.
type UnsubscribeAck struct {
	Client ClientID
	SubscribeFields
}

func (c *UnsubscribeAck) ID() CommandID { return IDUnsubscribeAck }
func (c *UnsubscribeAck) Sender() ClientID { return c.Client }

func unpackSubscribe(h header, p []byte) (Command, error) {
	if len(p) < subscribePayloadSize {
		return nil, ErrTruncated
	}
	var f SubscribeFields
	f.unpackPayload(p)
	switch h.id {
	case IDSubscribe:
		return &Subscribe{Client: h.client, SubscribeFields: f}, nil
	case IDSubscribeAck:
		return &SubscribeAck{Client: h.client, SubscribeFields: f}, nil
	case IDSubscribeNack:
		return &SubscribeNack{Client: h.client, SubscribeFields: f}, nil
	case IDUnsubscribe:
		return &Unsubscribe{Client: h.client, SubscribeFields: f}, nil
	case IDUnsubscribeAck:
		return &UnsubscribeAck{Client: h.client, SubscribeFields: f}, nil
	}
	return nil, ErrUnknownID
}
