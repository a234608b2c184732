package types

import (
	"reflect"
	"testing"
)

func TestSampleCloneSharesNoPointers(t *testing.T) {
	orig := Sample{
		Timestamp:         1,
		UptimeSec:         2,
		ProcessCPUPercent: Float(10),
		SystemCPUPercent:  Float(20),
		RSSMB:             Float(30),
		HeapUsedMB:        Float(4),
		HeapTotalMB:       Float(8),
		SystemMemPercent:  Float(50),
		Load1:             Float(0.5),
		LagMeanMs:         Float(1),
		LagMaxMs:          Float(2),
		ActiveHandles:     Int(3),
		ActiveRequests:    Int(4),
		NetRxBps:          Float(100),
		NetTxBps:          Float(200),
		NetRxBytes:        Uint(1000),
		NetTxBytes:        Uint(2000),
	}

	c := orig.Clone()
	if !reflect.DeepEqual(c, orig) {
		t.Fatalf("clone differs from original: %+v", c)
	}

	ov := reflect.ValueOf(orig)
	cv := reflect.ValueOf(c)
	for i := 0; i < ov.NumField(); i++ {
		if ov.Field(i).Kind() != reflect.Ptr {
			continue
		}
		if ov.Field(i).Pointer() == cv.Field(i).Pointer() {
			t.Errorf("field %s shares its pointer with the original", ov.Type().Field(i).Name)
		}
	}

	*c.SystemCPUPercent = -42
	*c.NetRxBytes = 0
	if *orig.SystemCPUPercent != 20 || *orig.NetRxBytes != 1000 {
		t.Fatal("mutating the clone changed the original")
	}
}

func TestSampleCloneKeepsNil(t *testing.T) {
	c := Sample{Timestamp: 5}.Clone()
	if c.Load1 != nil || c.ActiveHandles != nil || c.NetTxBytes != nil {
		t.Fatal("expected unavailable fields to stay nil")
	}
	if c.Timestamp != 5 {
		t.Errorf("expected timestamp 5, got %d", c.Timestamp)
	}
}
