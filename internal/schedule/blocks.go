package schedule

import "fmt"

// HalfHourBlocks expands intervals into the renderer's cell ids
// "{queue}_{HH}{a|b}" ("a" = first half of the hour, "b" = second), walking
// each interval in 30-minute steps. The interval is half-open, so a step
// landing exactly on the end is excluded; a midnight-crossing interval keeps
// walking into next-day hours (wrapped mod 24).
func HalfHourBlocks(queue string, intervals []Interval) []string {
	var ids []string
	for _, iv := range intervals {
		for t := int(iv.Start); t < int(iv.End); t += 30 {
			hour := (t / 60) % 24
			half := "a"
			if t%60 >= 30 {
				half = "b"
			}
			ids = append(ids, fmt.Sprintf("%s_%02d%s", queue, hour, half))
		}
	}
	return ids
}
