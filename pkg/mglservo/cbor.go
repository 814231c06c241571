// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MarshalAckCBOR encodes an acknowledgement status as an integer-keyed CBOR map
func MarshalAckCBOR(s *AckStatus) ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ack status: %w", err)
	}
	return data, nil
}

// UnmarshalAckCBOR decodes a status produced by MarshalAckCBOR
func UnmarshalAckCBOR(data []byte) (*AckStatus, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}
	var s AckStatus
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode ack status: %w", err)
	}
	return &s, nil
}
