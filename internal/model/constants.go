package model

const (
    PreTripMinutes   = 15
    DischargeMinutes = 15
    ReloadMinutes    = 15

    MaxFuelGal       = 25.0
    MaxPartM3        = 25.0
    ReloadPenaltyGal = 0.1
    LoadTolerance    = 0.01

    SpeedKmh      = 50.0
    MinutesPerDay = 24 * 60

    DefaultTabuIterations = 400
    DefaultTabuTenure     = 15
)
