package common

// Speeds are in km/h, the unit of every speed feature.

const SpeedOfStillMax = 1.0 // fidgeting, GPS jitter

const SpeedOfWalkingMin = 0.8
const SpeedOfWalkingMean = 4.3
const SpeedOfWalkingMax = 7.0

const SpeedOfCyclingMin = 8.0
const SpeedOfCyclingMean = 19.3
const SpeedOfCyclingMax = 42.0

const SpeedOfMotorcycleMean = 55.0
const SpeedOfMotorcycleMax = 160.0

const SpeedOfDrivingMin = 16.0
const SpeedOfDrivingCityMean = 50.0
const SpeedOfDrivingHighway = 91.0
const SpeedOfDrivingMax = 161.0

const SpeedOfTrainMin = 30.0
const SpeedOfTrainMean = 110.0
const SpeedOfTrainMax = 320.0

const SpeedOfFlyingSlow = 200.0
const SpeedOfCommercialFlight = 900.0

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0088
