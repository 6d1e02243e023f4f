package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSON 通用 JSON 字段（网关原始载荷、元数据等）
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	// 以文本写入，sqlite 的 json_extract 不接受 BLOB
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	switch typed := value.(type) {
	case nil:
		*j = make(JSON)
		return nil
	case []byte:
		if len(typed) == 0 {
			*j = make(JSON)
			return nil
		}
		return json.Unmarshal(typed, j)
	case string:
		if typed == "" {
			*j = make(JSON)
			return nil
		}
		return json.Unmarshal([]byte(typed), j)
	default:
		return nil
	}
}
