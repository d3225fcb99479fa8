package pattern

import "fmt"

// alarm builds a record with a known hour and date.
func alarm(meter string, year, month, day, hour int, consumption float64) AlarmRecord {
	return AlarmRecord{
		Meter:       meter,
		Date:        fmt.Sprintf("%02d-%02d-%04d", day, month, year),
		Time:        fmt.Sprintf("%02d:00", hour),
		Year:        year,
		Month:       month,
		Day:         day,
		Hour:        hour,
		Consumption: consumption,
		Temperature: 21.5,
	}
}

// morningDraws is ten small morning alarms on ten different days.
func morningDraws(meter string) []AlarmRecord {
	var out []AlarmRecord
	for i := 0; i < 10; i++ {
		out = append(out, alarm(meter, 2024, 6, i+1, 6+i%4, 0.2))
	}
	return out
}

// nightBurn is twenty large alarms forming runs of 7, 7 and 6 hours over
// three days, mostly at night.
func nightBurn(meter string) []AlarmRecord {
	var out []AlarmRecord
	for day, hours := range []int{7, 7, 6} {
		for h := 0; h < hours; h++ {
			out = append(out, alarm(meter, 2024, 7, day+1, h, 1.8))
		}
	}
	return out
}
