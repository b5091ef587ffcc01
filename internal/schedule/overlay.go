package schedule

// OverlayConfig applies a school config bundle onto every sheet,
// replacing school info, period configs and day configs. Slots whose
// period id no longer exists are pruned, mirroring SetPeriodConfigs.
// The input slice is modified in place and returned.
func OverlayConfig(sheets []Sheet, cfg Config) []Sheet {
	valid := make(map[int]struct{}, len(cfg.PeriodConfigs))
	for _, p := range cfg.PeriodConfigs {
		valid[p.ID] = struct{}{}
	}
	for i := range sheets {
		sheets[i].SchoolInfo = cfg.SchoolInfo
		sheets[i].PeriodConfigs = append([]PeriodConfig(nil), cfg.PeriodConfigs...)
		sheets[i].DayConfigs = append([]DayConfig(nil), cfg.DayConfigs...)
		kept := sheets[i].Slots[:0]
		for _, s := range sheets[i].Slots {
			if _, ok := valid[s.Period]; !ok {
				continue
			}
			kept = append(kept, s)
		}
		sheets[i].Slots = kept
	}
	return sheets
}
