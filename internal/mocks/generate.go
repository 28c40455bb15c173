package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Store --dir ../domain/player --output domain/player --outpkg playermock --filename store_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name UnitOfWork --dir ../domain/player --output domain/player --outpkg playermock --filename unit_of_work_mock.go
