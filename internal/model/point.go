package model

import (
	"encoding/json"
	"fmt"
)

// Координатные границы для нешифрованных точек.
const (
	LatMin = -90.0
	LatMax = 90.0
	LonMin = -180.0
	LonMax = 180.0
)

// Point — одна точка местоположения. На проводе и в хранилище сериализуется
// кортежом [lat, lon, time, provider, accuracy, speed, altitude]; хвостовые
// поля могут быть null. Для E2E-шифрованных сессий первым элементом идёт iv,
// а все остальные поля — непрозрачные шифроблоки (строки); сервер их не
// валидирует и не интерпретирует.
type Point struct {
	Lat      float64
	Lon      float64
	Time     float64
	Provider *string
	Accuracy *float64
	Speed    *float64
	Altitude *float64

	// IV непустой только у шифрованных точек; Cipher тогда хранит
	// зашифрованные поля в исходном порядке вместо числовых полей выше.
	IV     string
	Cipher []string
}

// Encrypted сообщает, является ли точка шифроблоком.
func (p *Point) Encrypted() bool { return p.IV != "" }

// ValidCoordinates проверяет границы широты и долготы.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= LatMin && lat <= LatMax && lon >= LonMin && lon <= LonMax
}

func (p Point) MarshalJSON() ([]byte, error) {
	if p.Encrypted() {
		tuple := make([]any, 0, len(p.Cipher)+1)
		tuple = append(tuple, p.IV)
		for _, blob := range p.Cipher {
			tuple = append(tuple, blob)
		}
		return json.Marshal(tuple)
	}
	return json.Marshal([]any{p.Lat, p.Lon, p.Time, p.Provider, p.Accuracy, p.Speed, p.Altitude})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(tuple) < 3 {
		return fmt.Errorf("point: tuple too short (%d elements)", len(tuple))
	}
	// Шифрованная точка начинается со строкового iv, нешифрованная — с числа.
	if len(tuple[0]) > 0 && tuple[0][0] == '"' {
		if err := json.Unmarshal(tuple[0], &p.IV); err != nil {
			return fmt.Errorf("point iv: %w", err)
		}
		p.Cipher = make([]string, 0, len(tuple)-1)
		for _, raw := range tuple[1:] {
			var blob string
			if err := json.Unmarshal(raw, &blob); err != nil {
				return fmt.Errorf("point cipher field: %w", err)
			}
			p.Cipher = append(p.Cipher, blob)
		}
		return nil
	}
	if err := json.Unmarshal(tuple[0], &p.Lat); err != nil {
		return fmt.Errorf("point lat: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &p.Lon); err != nil {
		return fmt.Errorf("point lon: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &p.Time); err != nil {
		return fmt.Errorf("point time: %w", err)
	}
	optStr := func(raw json.RawMessage, dst **string) error {
		if string(raw) == "null" {
			return nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*dst = &s
		return nil
	}
	optNum := func(raw json.RawMessage, dst **float64) error {
		if string(raw) == "null" {
			return nil
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		*dst = &f
		return nil
	}
	if len(tuple) > 3 {
		if err := optStr(tuple[3], &p.Provider); err != nil {
			return fmt.Errorf("point provider: %w", err)
		}
	}
	if len(tuple) > 4 {
		if err := optNum(tuple[4], &p.Accuracy); err != nil {
			return fmt.Errorf("point accuracy: %w", err)
		}
	}
	if len(tuple) > 5 {
		if err := optNum(tuple[5], &p.Speed); err != nil {
			return fmt.Errorf("point speed: %w", err)
		}
	}
	if len(tuple) > 6 {
		if err := optNum(tuple[6], &p.Altitude); err != nil {
			return fmt.Errorf("point altitude: %w", err)
		}
	}
	return nil
}
