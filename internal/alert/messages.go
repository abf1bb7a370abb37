package alert

import (
	"fmt"
	"strconv"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
)

// Operator-facing message texts. The wording is fixed; field crews and
// the control centre key procedures off these exact strings.

// LTEFault reports a device that stopped sending telemetry.
func LTEFault(place, equipType string, id int) string {
	return fmt.Sprintf("'%s' 장소에 설치된 장비(%s-%d) \n셀룰러(LTE) 오류가 발생했습니다.", place, equipType, id)
}

// LTEResumed reports a faulted device sending telemetry again.
func LTEResumed(place, equipType string, id int) string {
	return fmt.Sprintf("'%s' 장소에 설치된 장비(%s-%d) \n셀룰러(LTE)가 재개되었습니다.", place, equipType, id)
}

// AbnormalCurrent reports a channel current outside its baseline
// envelope. The ampere value is rendered without trailing zeros.
func AbnormalCurrent(place, equipType string, id int, channel equipment.Channel, ampere float64) string {
	lamp := "적색등"
	if channel == equipment.ChannelGreen {
		lamp = "녹색등"
	}
	return fmt.Sprintf("'%s' 장소에 설치된 장비(%s-%d) \n%s 비정상 전류 \n\n전류: %smA",
		place, equipType, id, lamp, strconv.FormatFloat(ampere, 'f', -1, 64))
}

// RS485Error reports a controller losing RS485 contact with its control
// board.
func RS485Error(place, equipType string, id int) string {
	return fmt.Sprintf("'%s' 장소에 설치된 장비(%s-%d) \n제어부와 RS485 통신 오류가 발생했습니다.", place, equipType, id)
}

// MalformedPayload reports a telemetry payload that did not parse.
func MalformedPayload(equipType string, id int) string {
	return fmt.Sprintf("장비(%s-%d) 데이터 형식이 맞지가 않습니다.", equipType, id)
}

// Broker connection notices.
const (
	BrokerConnected    = "MQTT Broker 정상적으로 연결되었습니다."
	BrokerDisconnected = "MQTT Broker 연결이 끊어졌습니다."
)
